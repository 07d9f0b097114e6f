package coordinator

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"finco/txcoordinator/common"
	apperrors "finco/txcoordinator/errors"
)

// CreateProposal opens a transaction proposal with the proposer's signature
// pre-applied, so the signature count is 1 immediately. The proposer counts
// toward the threshold like any other signer; on a 1-of-N wallet the proposal
// is quorum-complete at creation.
func (c *Coordinator) CreateProposal(ctx context.Context, req common.CreateProposalRequest) (*common.TransactionProposal, error) {
	const op = "coordinator.CreateProposal"

	wallet, err := c.GetWallet(ctx, req.WalletID)
	if err != nil {
		return nil, err
	}

	if !wallet.HasSigner(req.ProposerID) {
		return nil, apperrors.Ef(apperrors.NotASigner, op, "proposer %s is not a signer of wallet %s", req.ProposerID, wallet.WalletID)
	}

	now := c.now()
	proposal := &common.TransactionProposal{
		ProposalID: primitive.NewObjectID().Hex(),
		WalletID:   wallet.WalletID,
		Blockchain: wallet.Blockchain,
		ProposerID: req.ProposerID,
		Payload:    req.Payload,
		Status:     common.ProposalPending,
		Signatures: map[string]string{req.ProposerID: req.Signature},
		Version:    1,
		CreatedAt:  now,
		ExpiresAt:  now.Add(c.ProposalTTL),
	}
	if proposal.SignatureCount() >= wallet.RequiredSignatures {
		proposal.Status = common.ProposalQuorumReached
	}

	if err := c.Proposals.InsertProposal(ctx, proposal); err != nil {
		return nil, storeErr(op, err)
	}

	c.audit(ctx, proposal.ProposalID, req.ProposerID, common.AuditProposalCreated, map[string]interface{}{
		"walletId": wallet.WalletID,
		"kind":     req.Payload.Kind,
		"tokenId":  req.Payload.TokenID,
	})

	return proposal, nil
}

// GetProposal fetches one proposal, applying the on-access expiry check.
func (c *Coordinator) GetProposal(ctx context.Context, proposalID string) (*common.TransactionProposal, error) {
	const op = "coordinator.GetProposal"

	proposal, err := c.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		if apperrors.Is(err, ErrNoRecord) {
			return nil, apperrors.Ef(apperrors.NotFound, op, "proposal %s", proposalID)
		}
		return nil, storeErr(op, err)
	}

	return c.expireIfStale(ctx, proposal)
}

// ListPendingProposals returns the wallet's live proposals. The stale sweep
// runs first so the answer never contains a proposal that is already past its
// horizon.
func (c *Coordinator) ListPendingProposals(ctx context.Context, walletID string) ([]common.TransactionProposal, error) {
	const op = "coordinator.ListPendingProposals"

	if _, err := c.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}

	if _, err := c.ExpireStale(ctx); err != nil {
		log.Error("stale sweep before listing failed: ", err)
	}

	proposals, err := c.Proposals.ListPendingByWallet(ctx, walletID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return proposals, nil
}

// expireIfStale transitions a live proposal past its horizon into Expired.
// Pure function of current time and stored state, safe to run redundantly
// from any caller: the CAS makes the losing sweep a no-op.
func (c *Coordinator) expireIfStale(ctx context.Context, p *common.TransactionProposal) (*common.TransactionProposal, error) {
	const op = "coordinator.expireIfStale"

	if p.Terminal() || p.Status == common.ProposalExecuting || !c.now().After(p.ExpiresAt) {
		return p, nil
	}

	expired := p.Clone()
	expired.Status = common.ProposalExpired
	err := c.Proposals.UpdateProposal(ctx, expired, p.Version)
	if err == nil {
		c.audit(ctx, p.ProposalID, "", common.AuditExpired, nil)
		return expired, nil
	}
	if apperrors.Is(err, ErrVersionConflict) {
		// someone else moved it first; their state wins
		fresh, rerr := c.Proposals.GetProposal(ctx, p.ProposalID)
		if rerr != nil {
			return nil, storeErr(op, rerr)
		}
		return fresh, nil
	}
	return nil, storeErr(op, err)
}

// ExpireStale sweeps every live proposal whose horizon has passed. Intended
// for the housekeeping route or a cron; redundant runs are harmless.
func (c *Coordinator) ExpireStale(ctx context.Context) (int, error) {
	const op = "coordinator.ExpireStale"

	ids, err := c.Proposals.ListStale(ctx, c.now(), staleSweepLimit)
	if err != nil {
		return 0, storeErr(op, err)
	}

	swept := 0
	for _, id := range ids {
		p, err := c.Proposals.GetProposal(ctx, id)
		if err != nil {
			continue
		}
		res, err := c.expireIfStale(ctx, p)
		if err == nil && res.Status == common.ProposalExpired && p.Status != common.ProposalExpired {
			swept++
		}
	}
	return swept, nil
}

const staleSweepLimit = 500
