// Package coordinator turns an M-of-N wallet definition into a safely
// executed on-chain transaction: it tracks how many valid authorizations a
// proposal has collected, detects quorum, and gates a single broadcast. It
// never verifies signature math and never sees key material.
//
// All cross-request invariants are enforced through the conditioned writes of
// the store contracts below; the coordinator itself holds no locks and keeps
// no in-process state, so any number of instances can run against one store.
package coordinator

import (
	"context"
	"errors"
	"time"

	"finco/txcoordinator/common"
	apperrors "finco/txcoordinator/errors"
)

// Sentinel errors the store implementations translate their driver errors
// into. The coordinator maps them onto the caller-facing taxonomy.
var (
	ErrNoRecord        = errors.New("record not found")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrVersionConflict = errors.New("version conflict")
)

// WalletStore persists immutable wallet definitions.
type WalletStore interface {
	InsertWallet(ctx context.Context, w *common.MultiSigWallet) error
	GetWallet(ctx context.Context, walletID string) (*common.MultiSigWallet, error)
}

// ProposalStore persists proposals. UpdateProposal is the single concurrency
// primitive: it must write p only if the stored version still equals
// expected, setting the stored version to expected+1 in the same round trip,
// and return ErrVersionConflict otherwise. A read-compute-write without that
// condition is exactly the bug class this contract exists to rule out.
type ProposalStore interface {
	InsertProposal(ctx context.Context, p *common.TransactionProposal) error
	GetProposal(ctx context.Context, proposalID string) (*common.TransactionProposal, error)
	ListPendingByWallet(ctx context.Context, walletID string) ([]common.TransactionProposal, error)
	UpdateProposal(ctx context.Context, p *common.TransactionProposal, expected int64) error
	ListStale(ctx context.Context, now time.Time, limit int64) ([]string, error)
}

// AuditStore is the append-only transition record.
type AuditStore interface {
	AppendAudit(ctx context.Context, e *common.AuditEntry) error
	ListBySubject(ctx context.Context, subjectID string) ([]common.AuditEntry, error)
}

// IdempotencyStore holds replay-protection records for a bounded TTL.
// PutNX must be atomic: of any number of concurrent calls for the same
// (callerId, key), exactly one returns true.
type IdempotencyStore interface {
	PutNX(ctx context.Context, rec *common.IdempotencyRecord, ttl time.Duration) (bool, error)
	GetRecord(ctx context.Context, callerID, key string) (*common.IdempotencyRecord, error)
	UpdateRecord(ctx context.Context, rec *common.IdempotencyRecord) error
	DeleteRecord(ctx context.Context, callerID, key string) error
}

// Broadcaster submits an assembled transaction to the chain. Non-custodial:
// it receives the payload and collected signature artifacts, never keys.
type Broadcaster interface {
	Broadcast(ctx context.Context, p *common.TransactionProposal) (txHash string, err error)
}

// storeErr wraps an unclassified store failure as retryable infrastructure.
func storeErr(op string, err error) error {
	return apperrors.E(apperrors.StoreUnavailable, op, err)
}
