package coordinator

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"finco/txcoordinator/common"
	apperrors "finco/txcoordinator/errors"
)

// Guard deduplicates client-initiated state-changing requests. A retry with
// the same (callerId, key, fingerprint) gets the cached prior response; a key
// reused for a different request body is a client error, not a replay.
//
// This is a separate contention unit from the proposal's version CAS on
// purpose: a client retry and a second signer's concurrent sign are different
// hazards and must not share a key.
type Guard struct {
	Store IdempotencyStore
	TTL   time.Duration

	Now func() time.Time
}

// Decision is the outcome of Begin. Exactly one of Proceed or Replay applies.
type Decision struct {
	Proceed bool
	Replay  *common.IdempotencyRecord
}

// Fingerprint hashes the logically significant request identity.
func Fingerprint(parts ...[]byte) string {
	return hex.EncodeToString(crypto.Keccak256(parts...))
}

func (g *Guard) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}

// Begin claims the right to run the underlying operation. The claim is a
// single set-if-absent round trip, so of any number of concurrent identical
// requests exactly one observes Proceed; the others see the cached response
// once it exists, or a retryable InProgress conflict while it doesn't.
func (g *Guard) Begin(ctx context.Context, callerID, key, fingerprint string) (*Decision, error) {
	const op = "guard.Begin"

	rec := &common.IdempotencyRecord{
		CallerID:    callerID,
		Key:         key,
		Fingerprint: fingerprint,
		Status:      common.IdempotencyInProgress,
		CreatedAt:   g.now(),
	}

	claimed, err := g.Store.PutNX(ctx, rec, g.TTL)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if claimed {
		return &Decision{Proceed: true}, nil
	}

	existing, err := g.Store.GetRecord(ctx, callerID, key)
	if err != nil {
		if apperrors.Is(err, ErrNoRecord) {
			// record expired between the failed claim and the read;
			// the caller can simply retry
			return nil, apperrors.Ef(apperrors.InProgress, op, "idempotency key %s contended, retry", key)
		}
		return nil, storeErr(op, err)
	}

	if existing.Fingerprint != fingerprint {
		return nil, apperrors.Ef(apperrors.KeyConflict, op, "idempotency key %s reused for a different request", key)
	}
	if existing.Status == common.IdempotencyCompleted {
		return &Decision{Replay: existing}, nil
	}
	return nil, apperrors.Ef(apperrors.InProgress, op, "request with key %s still in flight", key)
}

// Complete stores the response snapshot and marks the record terminal. Must
// be called exactly once per key that reached Proceed.
func (g *Guard) Complete(ctx context.Context, callerID, key string, responseCode int, responseBody []byte) error {
	const op = "guard.Complete"

	rec, err := g.Store.GetRecord(ctx, callerID, key)
	if err != nil {
		return storeErr(op, err)
	}
	rec.Status = common.IdempotencyCompleted
	rec.ResponseCode = responseCode
	rec.ResponseBody = json.RawMessage(responseBody)
	if err := g.Store.UpdateRecord(ctx, rec); err != nil {
		return storeErr(op, err)
	}
	return nil
}

// Release drops the claim after the underlying operation errored, so a retry
// with the same key executes fresh instead of replaying a failure.
func (g *Guard) Release(ctx context.Context, callerID, key string) error {
	const op = "guard.Release"

	if err := g.Store.DeleteRecord(ctx, callerID, key); err != nil && !apperrors.Is(err, ErrNoRecord) {
		return storeErr(op, err)
	}
	return nil
}
