package common

// Typed request bodies, one per state-changing operation. Validation happens
// at the binding layer before anything reaches the coordinator.

// CreateWalletRequest registers a new M-of-N wallet definition.
type CreateWalletRequest struct {
	OwnerID            string   `json:"ownerId" binding:"required"`
	Blockchain         string   `json:"blockchainId" binding:"required,blockchain_id"`
	Address            string   `json:"address" binding:"required,chain_address"`
	RequiredSignatures int      `json:"requiredSignatures" binding:"required,min=1"`
	Signers            []Signer `json:"signers" binding:"required,min=1,dive"`
}

// CreateProposalRequest opens a transaction proposal against a wallet. The
// proposer's own signature artifact is pre-applied on creation.
type CreateProposalRequest struct {
	WalletID   string    `json:"walletId" binding:"required,object_id"`
	ProposerID string    `json:"proposerSignerId" binding:"required"`
	Payload    TxPayload `json:"payload" binding:"required"`
	Signature  string    `json:"signature" binding:"required"`
}

// SignProposalRequest applies one signer's authorization.
type SignProposalRequest struct {
	SignerID  string `json:"signerId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// WalletResponse is the wallet descriptor returned to callers.
type WalletResponse struct {
	Wallet *MultiSigWallet `json:"wallet"`
}

// ProposalResponse is the proposal descriptor returned from propose, sign and
// execute calls. TxHash is only set once the proposal is executed.
type ProposalResponse struct {
	ProposalID     string `json:"proposalId"`
	WalletID       string `json:"walletId"`
	Status         string `json:"status"`
	SignatureCount int    `json:"currentSignatureCount"`
	TxHash         string `json:"txHash,omitempty"`
	FailureReason  string `json:"failureReason,omitempty"`
}

// NewProposalResponse flattens a proposal into its caller-facing descriptor.
func NewProposalResponse(p *TransactionProposal) ProposalResponse {
	resp := ProposalResponse{
		ProposalID:     p.ProposalID,
		WalletID:       p.WalletID,
		Status:         p.Status,
		SignatureCount: p.SignatureCount(),
	}
	if p.Result != nil {
		resp.TxHash = p.Result.TxHash
		resp.FailureReason = p.Result.Reason
	}
	return resp
}
