package coordinator

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"finco/txcoordinator/common"
	apperrors "finco/txcoordinator/errors"
)

// CreateWallet registers an immutable M-of-N wallet definition. There is
// deliberately no update or delete: reconfiguring signers or the threshold
// means creating a new wallet.
func (c *Coordinator) CreateWallet(ctx context.Context, req common.CreateWalletRequest) (*common.MultiSigWallet, error) {
	const op = "coordinator.CreateWallet"

	if req.RequiredSignatures < 1 || req.RequiredSignatures > len(req.Signers) {
		return nil, apperrors.Ef(apperrors.InvalidThreshold, op,
			"requiredSignatures %d outside [1, %d]", req.RequiredSignatures, len(req.Signers))
	}

	seen := make(map[string]bool, len(req.Signers))
	for _, s := range req.Signers {
		if seen[s.SignerID] {
			return nil, apperrors.Ef(apperrors.DuplicateSigner, op, "signer %s repeats", s.SignerID)
		}
		seen[s.SignerID] = true
	}

	wallet := &common.MultiSigWallet{
		WalletID:           primitive.NewObjectID().Hex(),
		OwnerID:            req.OwnerID,
		Blockchain:         req.Blockchain,
		Address:            req.Address,
		RequiredSignatures: req.RequiredSignatures,
		Signers:            req.Signers,
		CreatedAt:          c.now(),
	}

	if err := c.Wallets.InsertWallet(ctx, wallet); err != nil {
		return nil, storeErr(op, err)
	}

	c.audit(ctx, wallet.WalletID, req.OwnerID, common.AuditWalletCreated, map[string]interface{}{
		"blockchainId":       wallet.Blockchain,
		"requiredSignatures": wallet.RequiredSignatures,
		"signerCount":        len(wallet.Signers),
	})

	return wallet, nil
}

// GetWallet fetches one wallet definition.
func (c *Coordinator) GetWallet(ctx context.Context, walletID string) (*common.MultiSigWallet, error) {
	const op = "coordinator.GetWallet"

	wallet, err := c.Wallets.GetWallet(ctx, walletID)
	if err != nil {
		if apperrors.Is(err, ErrNoRecord) {
			return nil, apperrors.Ef(apperrors.NotFound, op, "wallet %s", walletID)
		}
		return nil, storeErr(op, err)
	}
	return wallet, nil
}
