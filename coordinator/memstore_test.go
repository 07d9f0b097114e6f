package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finco/txcoordinator/common"
)

// In-memory store fakes honoring the same contracts the mongo and redis
// gateways implement, so the coordinator logic is testable without either.

type memWalletStore struct {
	mu      sync.Mutex
	wallets map[string]*common.MultiSigWallet
}

func newMemWalletStore() *memWalletStore {
	return &memWalletStore{wallets: map[string]*common.MultiSigWallet{}}
}

func (s *memWalletStore) InsertWallet(ctx context.Context, w *common.MultiSigWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[w.WalletID]; ok {
		return ErrDuplicateKey
	}
	cp := *w
	s.wallets[w.WalletID] = &cp
	return nil
}

func (s *memWalletStore) GetWallet(ctx context.Context, walletID string) (*common.MultiSigWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, ErrNoRecord
	}
	cp := *w
	return &cp, nil
}

type memProposalStore struct {
	mu        sync.Mutex
	proposals map[string]*common.TransactionProposal
}

func newMemProposalStore() *memProposalStore {
	return &memProposalStore{proposals: map[string]*common.TransactionProposal{}}
}

func (s *memProposalStore) InsertProposal(ctx context.Context, p *common.TransactionProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[p.ProposalID]; ok {
		return ErrDuplicateKey
	}
	s.proposals[p.ProposalID] = p.Clone()
	return nil
}

func (s *memProposalStore) GetProposal(ctx context.Context, proposalID string) (*common.TransactionProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[proposalID]
	if !ok {
		return nil, ErrNoRecord
	}
	return p.Clone(), nil
}

func (s *memProposalStore) ListPendingByWallet(ctx context.Context, walletID string) ([]common.TransactionProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []common.TransactionProposal
	for _, p := range s.proposals {
		if p.WalletID != walletID {
			continue
		}
		if p.Status == common.ProposalPending || p.Status == common.ProposalQuorumReached {
			res = append(res, *p.Clone())
		}
	}
	return res, nil
}

// UpdateProposal applies the conditioned write: the stored version must still
// equal expected or the write is rejected whole.
func (s *memProposalStore) UpdateProposal(ctx context.Context, p *common.TransactionProposal, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.proposals[p.ProposalID]
	if !ok || cur.Version != expected {
		return ErrVersionConflict
	}
	next := p.Clone()
	next.Version = expected + 1
	s.proposals[p.ProposalID] = next
	p.Version = next.Version
	return nil
}

func (s *memProposalStore) ListStale(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, p := range s.proposals {
		if int64(len(ids)) >= limit {
			break
		}
		if (p.Status == common.ProposalPending || p.Status == common.ProposalQuorumReached) && p.ExpiresAt.Before(now) {
			ids = append(ids, p.ProposalID)
		}
	}
	return ids, nil
}

type memAuditStore struct {
	mu      sync.Mutex
	entries []common.AuditEntry
}

func (s *memAuditStore) AppendAudit(ctx context.Context, e *common.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *memAuditStore) ListBySubject(ctx context.Context, subjectID string) ([]common.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []common.AuditEntry
	for _, e := range s.entries {
		if e.SubjectID == subjectID {
			res = append(res, e)
		}
	}
	return res, nil
}

func (s *memAuditStore) actions(subjectID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []string
	for _, e := range s.entries {
		if e.SubjectID == subjectID {
			res = append(res, e.Action)
		}
	}
	return res
}

type memIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*common.IdempotencyRecord
	expiry  map[string]time.Time

	now func() time.Time
}

func newMemIdempotencyStore(now func() time.Time) *memIdempotencyStore {
	if now == nil {
		now = time.Now
	}
	return &memIdempotencyStore{
		records: map[string]*common.IdempotencyRecord{},
		expiry:  map[string]time.Time{},
		now:     now,
	}
}

func idemKey(callerID, key string) string { return callerID + ":" + key }

func (s *memIdempotencyStore) live(k string) bool {
	rec, ok := s.records[k]
	if !ok || rec == nil {
		return false
	}
	if s.now().After(s.expiry[k]) {
		delete(s.records, k)
		delete(s.expiry, k)
		return false
	}
	return true
}

func (s *memIdempotencyStore) PutNX(ctx context.Context, rec *common.IdempotencyRecord, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey(rec.CallerID, rec.Key)
	if s.live(k) {
		return false, nil
	}
	cp := *rec
	s.records[k] = &cp
	s.expiry[k] = s.now().Add(ttl)
	return true, nil
}

func (s *memIdempotencyStore) GetRecord(ctx context.Context, callerID, key string) (*common.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey(callerID, key)
	if !s.live(k) {
		return nil, ErrNoRecord
	}
	cp := *s.records[k]
	return &cp, nil
}

func (s *memIdempotencyStore) UpdateRecord(ctx context.Context, rec *common.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey(rec.CallerID, rec.Key)
	if !s.live(k) {
		return ErrNoRecord
	}
	cp := *rec
	s.records[k] = &cp
	return nil
}

func (s *memIdempotencyStore) DeleteRecord(ctx context.Context, callerID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey(callerID, key)
	if !s.live(k) {
		return ErrNoRecord
	}
	delete(s.records, k)
	delete(s.expiry, k)
	return nil
}

// fakeBroadcaster counts calls and returns a canned outcome.
type fakeBroadcaster struct {
	calls  int32
	hash   string
	err    error
	delay  time.Duration
	onCall func()
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, p *common.TransactionProposal) (string, error) {
	atomic.AddInt32(&b.calls, 1)
	if b.onCall != nil {
		b.onCall()
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.err != nil {
		return "", b.err
	}
	return b.hash, nil
}

func (b *fakeBroadcaster) callCount() int {
	return int(atomic.LoadInt32(&b.calls))
}

// testClock is a swappable time source for expiry tests.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	coord     *Coordinator
	wallets   *memWalletStore
	proposals *memProposalStore
	audit     *memAuditStore
	chain     *fakeBroadcaster
	clock     *testClock
}

func newTestEnv() *testEnv {
	clock := newTestClock()
	env := &testEnv{
		wallets:   newMemWalletStore(),
		proposals: newMemProposalStore(),
		audit:     &memAuditStore{},
		chain:     &fakeBroadcaster{hash: "0xdeadbeef"},
		clock:     clock,
	}
	env.coord = &Coordinator{
		Wallets:          env.wallets,
		Proposals:        env.proposals,
		Audit:            env.audit,
		Broadcaster:      env.chain,
		ProposalTTL:      24 * time.Hour,
		BroadcastTimeout: 5 * time.Second,
		Now:              clock.Now,
	}
	return env
}

func (e *testEnv) createWallet(t *testing.T, threshold int, signerIDs ...string) *common.MultiSigWallet {
	t.Helper()
	signers := make([]common.Signer, 0, len(signerIDs))
	for _, id := range signerIDs {
		signers = append(signers, common.Signer{SignerID: id, DisplayName: id})
	}
	w, err := e.coord.CreateWallet(context.Background(), common.CreateWalletRequest{
		OwnerID:            signerIDs[0],
		Blockchain:         "ETH",
		Address:            "0xba536245A30404A983E120a3d07A7dF260a89669",
		RequiredSignatures: threshold,
		Signers:            signers,
	})
	if err != nil {
		t.Fatal("creating wallet:", err)
	}
	return w
}

func (e *testEnv) createProposal(t *testing.T, walletID, proposerID string) *common.TransactionProposal {
	t.Helper()
	p, err := e.coord.CreateProposal(context.Background(), common.CreateProposalRequest{
		WalletID:   walletID,
		ProposerID: proposerID,
		Payload: common.TxPayload{
			Kind:      common.KindTransfer,
			TokenID:   "ETH",
			ToAddress: "0x019ad7b3a616275df4272adad98a95d07658789e",
			Value:     "1000000000000000000",
		},
		Signature: "sig-" + proposerID,
	})
	if err != nil {
		t.Fatal("creating proposal:", err)
	}
	return p
}
