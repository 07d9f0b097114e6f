package coordinator

import (
	"context"

	log "github.com/sirupsen/logrus"

	"finco/txcoordinator/common"
	apperrors "finco/txcoordinator/errors"
)

// TryExecute claims the one-time right to execute a quorum-satisfied proposal
// and invokes the broadcast capability exactly once. The claim is a CAS from
// QuorumReached to Executing: of any number of concurrent callers, exactly
// one wins; the rest get AlreadyExecuting and must not broadcast themselves.
//
// A failed or timed-out broadcast is terminal. The on-chain effect of a
// rejected signed transaction is ambiguous, so this system never resubmits;
// moving the funds again takes a new proposal.
func (c *Coordinator) TryExecute(ctx context.Context, proposalID string) (*common.TransactionProposal, error) {
	const op = "coordinator.TryExecute"

	proposal, err := c.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	switch proposal.Status {
	case common.ProposalExpired:
		return nil, apperrors.Ef(apperrors.Expired, op, "proposal %s expired", proposalID)
	case common.ProposalExecuted, common.ProposalFailed:
		return nil, apperrors.Ef(apperrors.AlreadyTerminal, op, "proposal %s is %s", proposalID, proposal.Status)
	case common.ProposalExecuting:
		return nil, apperrors.Ef(apperrors.AlreadyExecuting, op, "proposal %s already claimed", proposalID)
	case common.ProposalPending:
		return nil, apperrors.Ef(apperrors.QuorumNotReached, op, "proposal %s has %d signatures, quorum not reached",
			proposalID, proposal.SignatureCount())
	}

	claimed := proposal.Clone()
	claimed.Status = common.ProposalExecuting
	if err := c.Proposals.UpdateProposal(ctx, claimed, proposal.Version); err != nil {
		if apperrors.Is(err, ErrVersionConflict) {
			return nil, c.lostClaim(ctx, op, proposalID)
		}
		return nil, storeErr(op, err)
	}

	return c.finishExecution(ctx, claimed)
}

// lostClaim re-reads the proposal to report why a concurrent caller won.
func (c *Coordinator) lostClaim(ctx context.Context, op, proposalID string) error {
	fresh, err := c.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return apperrors.Ef(apperrors.AlreadyExecuting, op, "proposal %s claimed by a concurrent caller", proposalID)
	}
	switch fresh.Status {
	case common.ProposalExecuted, common.ProposalFailed:
		return apperrors.Ef(apperrors.AlreadyTerminal, op, "proposal %s is %s", proposalID, fresh.Status)
	case common.ProposalExpired:
		return apperrors.Ef(apperrors.Expired, op, "proposal %s expired", proposalID)
	default:
		return apperrors.Ef(apperrors.AlreadyExecuting, op, "proposal %s claimed by a concurrent caller", proposalID)
	}
}

// finishExecution runs the single broadcast under a bounded timeout and
// records the terminal outcome. Only the claim holder reaches this point, so
// the closing CAS from Executing cannot be contended by another dispatcher.
func (c *Coordinator) finishExecution(ctx context.Context, claimed *common.TransactionProposal) (*common.TransactionProposal, error) {
	const op = "coordinator.finishExecution"

	bctx, cancel := context.WithTimeout(ctx, c.BroadcastTimeout)
	defer cancel()

	txHash, berr := c.Broadcaster.Broadcast(bctx, claimed)

	done := claimed.Clone()
	if berr != nil {
		done.Status = common.ProposalFailed
		done.Result = &common.ExecutionResult{Reason: berr.Error()}
	} else {
		done.Status = common.ProposalExecuted
		done.Result = &common.ExecutionResult{TxHash: txHash}
	}

	// the outcome write runs on its own bounded context, not the request's:
	// a caller cancelling mid-broadcast must not strand the proposal in
	// Executing, a state the expiry sweep never touches
	wctx, wcancel := context.WithTimeout(context.Background(), c.BroadcastTimeout)
	defer wcancel()

	if err := c.Proposals.UpdateProposal(wctx, done, claimed.Version); err != nil {
		// the broadcast already happened; losing the outcome write would
		// leave the proposal stuck in Executing, so this is loud
		log.WithFields(log.Fields{"proposalId": claimed.ProposalID}).Error("failed to persist execution outcome: ", err)
		return nil, storeErr(op, err)
	}

	if berr != nil {
		c.audit(wctx, done.ProposalID, "", common.AuditExecutionFailed, map[string]interface{}{
			"reason": berr.Error(),
		})
		return done, apperrors.E(apperrors.BroadcastFailed, op, berr)
	}

	c.audit(wctx, done.ProposalID, "", common.AuditExecuted, map[string]interface{}{
		"txHash": txHash,
	})
	return done, nil
}
