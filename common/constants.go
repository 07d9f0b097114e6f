package common

import "time"

// Proposal lifecycle states. Pending and QuorumReached are live; Executing is
// held by exactly one dispatcher; the rest are terminal and read-only.
const (
	ProposalPending       = "pending"
	ProposalQuorumReached = "quorum_reached"
	ProposalExecuting     = "executing"
	ProposalExecuted      = "executed"
	ProposalFailed        = "failed"
	ProposalExpired       = "expired"
)

// Idempotency record states
const (
	IdempotencyInProgress = "in_progress"
	IdempotencyCompleted  = "completed"
)

// Audit actions
const (
	AuditWalletCreated   = "wallet_created"
	AuditProposalCreated = "proposal_created"
	AuditSignatureAdded  = "signature_added"
	AuditExecuted        = "executed"
	AuditExecutionFailed = "execution_failed"
	AuditExpired         = "expired"
)

// Payload kinds accepted on proposals
const (
	KindTransfer = "transfer"
	KindSwap     = "swap"
	KindStake    = "stake"
)

// Conditioned-write retry budget for contended proposals
const (
	CASRetryAttempts = 5
	RetrySleep       = 25 * time.Millisecond
)

const (
	ECDSA = "ECDSA"
	EDDSA = "EDDSA"
)

// Array of supported blockchains mapped to their signature scheme
var BlockchainsMap map[string]string = map[string]string{
	"ETH":   ECDSA,
	"BTC":   ECDSA,
	"BNB":   ECDSA,
	"MATIC": ECDSA,
	"ADA":   EDDSA,
	"ALGO":  EDDSA,
	"AVAX":  ECDSA,
	"NEAR":  EDDSA,
}

// EVM chains get their destination addresses shape-checked on the way in
var EVMChains map[string]bool = map[string]bool{
	"ETH":   true,
	"BNB":   true,
	"MATIC": true,
	"AVAX":  true,
}

// Request headers supplied by the authenticated request layer
const (
	HeaderUserID         = "userId"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderIdempotentHit  = "Idempotent-Replayed"
)

const (
	WorkingEnvironment      = "WORKING_ENVIRONMENT"
	MongoDbConnectionString = "MongoDbConnectionString"
	MongoDatabase           = "MONGODB_DATABASE"
	WalletsCollection       = "WALLETS_COLLECTION"
	ProposalsCollection     = "PROPOSALS_COLLECTION"
	AuditCollection         = "AUDIT_COLLECTION"
	GinMode                 = "GIN_MODE"
	RedisHost               = "REDIS_HOST"
	RedisPort               = "REDIS_PORT"
	BroadcastAccessToken    = "BROADCAST_ACCESS_TOKEN"
)
