package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"finco/txcoordinator/common"
	apperrors "finco/txcoordinator/errors"
)

func TestSignTransactionQuorumExactness(t *testing.T) {
	env := newTestEnv()
	w := env.createWallet(t, 2, "alice", "bob", "carol")
	p := env.createProposal(t, w.WalletID, "alice")

	// second distinct signature crosses the 2-of-3 threshold
	got, err := env.coord.SignTransaction(context.Background(), p.ProposalID, "bob", "sig-bob")
	if err != nil {
		t.Fatal("signing:", err)
	}
	if got.Status != common.ProposalQuorumReached {
		t.Error("second signature should reach quorum, got", got.Status)
	}
	if got.SignatureCount() != 2 {
		t.Error("expected 2 signatures, got", got.SignatureCount())
	}

	// a third signature past quorum is recorded without changing the status
	got, err = env.coord.SignTransaction(context.Background(), p.ProposalID, "carol", "sig-carol")
	if err != nil {
		t.Fatal("signing past quorum:", err)
	}
	if got.Status != common.ProposalQuorumReached || got.SignatureCount() != 3 {
		t.Error("post-quorum signature mishandled:", got.Status, got.SignatureCount())
	}
}

func TestSignTransactionDuplicateSignerDoesNotCount(t *testing.T) {
	env := newTestEnv()
	w := env.createWallet(t, 2, "alice", "bob")
	p := env.createProposal(t, w.WalletID, "alice")

	_, err := env.coord.SignTransaction(context.Background(), p.ProposalID, "alice", "sig-again")
	if !apperrors.HasCode(err, apperrors.DuplicateSignature) {
		t.Error("expected DUPLICATE_SIGNATURE, got", err)
	}

	fresh, _ := env.coord.GetProposal(context.Background(), p.ProposalID)
	if fresh.SignatureCount() != 1 {
		t.Error("re-sign must not change the count, got", fresh.SignatureCount())
	}
	if fresh.Signatures["alice"] != "sig-alice" {
		t.Error("re-sign must not replace the stored artifact")
	}
}

func TestSignTransactionRejectsNonSigner(t *testing.T) {
	env := newTestEnv()
	w := env.createWallet(t, 2, "alice", "bob")
	p := env.createProposal(t, w.WalletID, "alice")

	_, err := env.coord.SignTransaction(context.Background(), p.ProposalID, "mallory", "sig")
	if !apperrors.HasCode(err, apperrors.NotASigner) {
		t.Error("expected NOT_A_SIGNER, got", err)
	}
}

func TestSignTransactionExpired(t *testing.T) {
	env := newTestEnv()
	w := env.createWallet(t, 2, "alice", "bob")
	p := env.createProposal(t, w.WalletID, "alice")

	env.clock.Advance(25 * time.Hour)

	_, err := env.coord.SignTransaction(context.Background(), p.ProposalID, "bob", "sig-bob")
	if !apperrors.HasCode(err, apperrors.Expired) {
		t.Error("expected EXPIRED, got", err)
	}
}

func TestSignTransactionTerminalStates(t *testing.T) {
	env := newTestEnv()
	w := env.createWallet(t, 1, "alice", "bob")
	p := env.createProposal(t, w.WalletID, "alice")

	if _, err := env.coord.TryExecute(context.Background(), p.ProposalID); err != nil {
		t.Fatal("executing:", err)
	}

	_, err := env.coord.SignTransaction(context.Background(), p.ProposalID, "bob", "sig-bob")
	if !apperrors.HasCode(err, apperrors.AlreadyTerminal) {
		t.Error("expected ALREADY_TERMINAL on executed proposal, got", err)
	}
}

func TestSignTransactionUnknownProposal(t *testing.T) {
	env := newTestEnv()

	_, err := env.coord.SignTransaction(context.Background(), "missing", "alice", "sig")
	if !apperrors.HasCode(err, apperrors.NotFound) {
		t.Error("expected NOT_FOUND, got", err)
	}
}

// Concurrent distinct signers must all land: the conditioned write forces the
// losers onto the fresh record, so no signature overwrites another.
func TestSignTransactionConcurrentSignersNoLostUpdates(t *testing.T) {
	env := newTestEnv()
	w := env.createWallet(t, 5, "alice", "bob", "carol", "dave", "erin")
	p := env.createProposal(t, w.WalletID, "alice")

	signers := []string{"bob", "carol", "dave", "erin"}
	var wg sync.WaitGroup
	errs := make(chan error, len(signers))
	for _, id := range signers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.coord.SignTransaction(context.Background(), p.ProposalID, id, "sig-"+id)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error("concurrent sign failed:", err)
		}
	}

	final, err := env.coord.GetProposal(context.Background(), p.ProposalID)
	if err != nil {
		t.Fatal(err)
	}
	if final.SignatureCount() != 5 {
		t.Error("lost update: expected 5 signatures, got", final.SignatureCount())
	}
	if final.Status != common.ProposalQuorumReached {
		t.Error("expected quorum_reached, got", final.Status)
	}
}

// Exactly one signing call observes the threshold crossing.
func TestSignTransactionQuorumCrossedOnce(t *testing.T) {
	env := newTestEnv()
	w := env.createWallet(t, 3, "alice", "bob", "carol", "dave")
	p := env.createProposal(t, w.WalletID, "alice")

	signers := []string{"bob", "carol", "dave"}
	results := make(chan *common.TransactionProposal, len(signers))
	var wg sync.WaitGroup
	for _, id := range signers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := env.coord.SignTransaction(context.Background(), p.ProposalID, id, "sig-"+id)
			if err != nil {
				t.Error("concurrent sign failed:", err)
				return
			}
			results <- res
		}(id)
	}
	wg.Wait()
	close(results)

	crossings := 0
	for res := range results {
		if res.Status == common.ProposalQuorumReached && res.SignatureCount() == 3 {
			crossings++
		}
	}
	if crossings != 1 {
		t.Error("threshold crossing observed", crossings, "times, want exactly 1")
	}
}
