package coordinator

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"finco/txcoordinator/common"
)

// Coordinator wires the stores and the broadcast capability together. It is
// safe for concurrent use from any number of request handlers.
type Coordinator struct {
	Wallets     WalletStore
	Proposals   ProposalStore
	Audit       AuditStore
	Broadcaster Broadcaster

	ProposalTTL      time.Duration
	BroadcastTimeout time.Duration

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

// New builds a Coordinator with the configured horizons.
func New(wallets WalletStore, proposals ProposalStore, audit AuditStore, broadcaster Broadcaster, cfg common.Configurations) *Coordinator {
	return &Coordinator{
		Wallets:          wallets,
		Proposals:        proposals,
		Audit:            audit,
		Broadcaster:      broadcaster,
		ProposalTTL:      cfg.ExpiryHorizon(),
		BroadcastTimeout: cfg.BroadcastTimeout(),
	}
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

// audit appends a transition record. Append failures go to the log and are
// never propagated: an audit outage must not fail the money-moving call.
func (c *Coordinator) audit(ctx context.Context, subjectID, actorID, action string, metadata map[string]interface{}) {
	entry := &common.AuditEntry{
		EntryID:   primitive.NewObjectID(),
		SubjectID: subjectID,
		ActorID:   actorID,
		Action:    action,
		Metadata:  metadata,
		CreatedAt: c.now(),
	}
	if err := c.Audit.AppendAudit(ctx, entry); err != nil {
		log.WithFields(log.Fields{
			"subjectId": subjectID,
			"action":    action,
		}).Error("audit append failed: ", err)
	}
}

// AuditTrail returns the append-only history for a wallet or proposal.
func (c *Coordinator) AuditTrail(ctx context.Context, subjectID string) ([]common.AuditEntry, error) {
	entries, err := c.Audit.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, storeErr("coordinator.AuditTrail", err)
	}
	return entries, nil
}
