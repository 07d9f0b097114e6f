package coordinator

import (
	"context"
	"time"

	"finco/txcoordinator/common"
	apperrors "finco/txcoordinator/errors"
)

// SignTransaction validates and applies one signer's authorization. The
// signature insert and the threshold check are one conditioned write: only
// the call whose CAS lands the M-th distinct signature flips the status to
// QuorumReached, so quorum can never be observed as "just crossed" twice.
//
// Signature order is commutative up to that crossing write; contended calls
// retry against the fresh record a bounded number of times.
func (c *Coordinator) SignTransaction(ctx context.Context, proposalID, signerID, artifact string) (*common.TransactionProposal, error) {
	const op = "coordinator.SignTransaction"

	for attempt := 0; attempt < common.CASRetryAttempts; attempt++ {
		proposal, err := c.GetProposal(ctx, proposalID)
		if err != nil {
			return nil, err
		}

		switch proposal.Status {
		case common.ProposalExpired:
			return nil, apperrors.Ef(apperrors.Expired, op, "proposal %s expired at %s", proposalID, proposal.ExpiresAt.Format(time.RFC3339))
		case common.ProposalExecuted, common.ProposalFailed:
			return nil, apperrors.Ef(apperrors.AlreadyTerminal, op, "proposal %s is %s", proposalID, proposal.Status)
		case common.ProposalExecuting:
			return nil, apperrors.Ef(apperrors.AlreadyExecuting, op, "proposal %s is being executed", proposalID)
		}
		if c.now().After(proposal.ExpiresAt) {
			return nil, apperrors.Ef(apperrors.Expired, op, "proposal %s expired at %s", proposalID, proposal.ExpiresAt.Format(time.RFC3339))
		}

		wallet, err := c.GetWallet(ctx, proposal.WalletID)
		if err != nil {
			return nil, err
		}
		if !wallet.HasSigner(signerID) {
			return nil, apperrors.Ef(apperrors.NotASigner, op, "%s is not a signer of wallet %s", signerID, wallet.WalletID)
		}
		if _, signed := proposal.Signatures[signerID]; signed {
			// re-signing must not increment the count; M-of-N is counted
			// over distinct signers
			return nil, apperrors.Ef(apperrors.DuplicateSignature, op, "%s already signed proposal %s", signerID, proposalID)
		}

		next := proposal.Clone()
		next.Signatures[signerID] = artifact
		crossed := false
		if next.Status == common.ProposalPending && next.SignatureCount() >= wallet.RequiredSignatures {
			next.Status = common.ProposalQuorumReached
			crossed = true
		}

		err = c.Proposals.UpdateProposal(ctx, next, proposal.Version)
		if apperrors.Is(err, ErrVersionConflict) {
			time.Sleep(common.RetrySleep)
			continue
		}
		if err != nil {
			return nil, storeErr(op, err)
		}

		c.audit(ctx, proposalID, signerID, common.AuditSignatureAdded, map[string]interface{}{
			"signatureCount": next.SignatureCount(),
			"quorumReached":  crossed,
		})
		return next, nil
	}

	return nil, apperrors.Ef(apperrors.StoreUnavailable, op, "proposal %s too contended, retries exhausted", proposalID)
}
