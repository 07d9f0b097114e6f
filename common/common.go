package common

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Signer is one authorized party of a multisig wallet
type Signer struct {
	SignerID    string `bson:"signerId" json:"signerId"`       // already-authenticated identity string supplied by the request layer
	DisplayName string `bson:"displayName" json:"displayName"` // human readable label shown in wallet UIs
}

// MultiSigWallet is an M-of-N wallet definition. Immutable after creation:
// changing signers or the threshold means creating a new wallet, so an
// in-flight proposal can never be ambiguous about which threshold applied.
type MultiSigWallet struct {
	WalletID           string    `bson:"walletId" json:"walletId"`
	OwnerID            string    `bson:"ownerId" json:"ownerId"`                       // userId created during registration upstream
	Blockchain         string    `bson:"blockchainId" json:"blockchainId"`             // blockchainId is the symbol for a specific blockchain
	Address            string    `bson:"address" json:"address"`                       // on-chain address of the multisig account
	RequiredSignatures int       `bson:"requiredSignatures" json:"requiredSignatures"` // quorum threshold M, 1 <= M <= len(Signers)
	Signers            []Signer  `bson:"signers" json:"signers"`
	CreatedAt          time.Time `bson:"createdAt" json:"createdAt"`
}

// HasSigner reports whether signerID belongs to the wallet's signer set.
func (w *MultiSigWallet) HasSigner(signerID string) bool {
	for _, s := range w.Signers {
		if s.SignerID == signerID {
			return true
		}
	}
	return false
}

// TxPayload is the opaque unsigned-transaction description carried by a
// proposal. The coordinator records and forwards it; chain semantics are the
// broadcast gateway's problem.
type TxPayload struct {
	Kind      string `bson:"kind" json:"kind" binding:"required,oneof=transfer swap stake"`
	TokenID   string `bson:"tokenId" json:"tokenId" binding:"required"`                 // tokenId is the symbol for specific asset ETH, BTC, ERC20 symbol
	ToAddress string `bson:"toAddress" json:"toAddress" binding:"required,chain_address"` // recipient or contract address
	Value     string `bson:"value" json:"value" binding:"required"`                     // value being transferred, chain units as string
	Data      string `bson:"data" json:"data"`                                          // chain-specific data to support smart contract execution
}

// ExecutionResult is set exactly once when a proposal leaves Executing.
type ExecutionResult struct {
	TxHash string `bson:"txHash,omitempty" json:"txHash,omitempty"`
	Reason string `bson:"reason,omitempty" json:"reason,omitempty"`
}

// TransactionProposal accumulates signatures against one wallet until quorum.
// Version is the optimistic-lock token: every conditioned write matches on it
// and increments it, so two concurrent writers can never both apply.
type TransactionProposal struct {
	ProposalID string            `bson:"proposalId" json:"proposalId"`
	WalletID   string            `bson:"walletId" json:"walletId"`
	Blockchain string            `bson:"blockchainId" json:"blockchainId"` // denormalized from the wallet for broadcast routing
	ProposerID string            `bson:"proposerId" json:"proposerId"`
	Payload    TxPayload         `bson:"payload" json:"payload"`
	Status     string            `bson:"status" json:"status"`
	Signatures map[string]string `bson:"signatures" json:"signatures"` // signerId -> signature artifact, at most one per signer
	Version    int64             `bson:"version" json:"-"`
	CreatedAt  time.Time         `bson:"createdAt" json:"createdAt"`
	ExpiresAt  time.Time         `bson:"expiresAt" json:"expiresAt"`
	Result     *ExecutionResult  `bson:"result,omitempty" json:"result,omitempty"`
}

// SignatureCount returns the number of distinct signers applied so far.
func (p *TransactionProposal) SignatureCount() int {
	return len(p.Signatures)
}

// Terminal reports whether the proposal reached a read-only state.
func (p *TransactionProposal) Terminal() bool {
	switch p.Status {
	case ProposalExecuted, ProposalFailed, ProposalExpired:
		return true
	}
	return false
}

// Clone deep-copies the proposal so a CAS attempt never mutates the copy a
// retry loop still needs.
func (p *TransactionProposal) Clone() *TransactionProposal {
	cp := *p
	cp.Signatures = make(map[string]string, len(p.Signatures))
	for k, v := range p.Signatures {
		cp.Signatures[k] = v
	}
	if p.Result != nil {
		r := *p.Result
		cp.Result = &r
	}
	return &cp
}

// IdempotencyRecord deduplicates one client-initiated state-changing request.
// Keyed by (callerId, key); Fingerprint ties the key to one logical request
// body so key reuse across different requests is rejected, not replayed.
type IdempotencyRecord struct {
	CallerID     string          `json:"callerId"`
	Key          string          `json:"key"`
	Fingerprint  string          `json:"fingerprint"`
	Status       string          `json:"status"` // in_progress or completed
	ResponseCode int             `json:"responseCode,omitempty"`
	ResponseBody json.RawMessage `json:"responseBody,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// AuditEntry is one append-only record of a state transition. EntryID is a
// Mongo ObjectID, which embeds the creation timestamp and orders entries.
type AuditEntry struct {
	EntryID   primitive.ObjectID     `bson:"_id,omitempty" json:"entryId"`
	SubjectID string                 `bson:"subjectId" json:"subjectId"` // wallet or proposal id
	ActorID   string                 `bson:"actorId" json:"actorId"`
	Action    string                 `bson:"action" json:"action"`
	Metadata  map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time              `bson:"createdAt" json:"createdAt"`
}

// Database groups the coordinator's mongo collections.
type Database struct {
	Wallets   *mongo.Collection
	Proposals *mongo.Collection
	Audit     *mongo.Collection
}

type ApiError struct {
	Status bool         `json:"status"`
	Err    ErrorDetails `json:"error"`
}

type ErrorDetails struct {
	Type    string      `json:"type"`
	Message interface{} `json:"message"`
}

type ApiSuccess struct {
	Status bool        `json:"status"`
	Result interface{} `json:"result"`
}
