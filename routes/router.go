package routes

import (
	"finco/txcoordinator/operations"

	"github.com/gin-gonic/gin"
)

func RouteHandler(routeEngine *gin.Engine) {

	// Helper route for the cron job that sweeps expired proposals; also the
	// liveness probe
	routeEngine.GET("/", HandlerWrap(operations.Housekeeping))

	router := routeEngine.Group("/api")

	// wallets api creates an immutable M-of-N wallet definition; retried
	// creates with an Idempotency-Key return the original wallet
	router.POST("/wallets", HandleWithIdempotency(operations.CreateWallet))

	router.GET("/wallets/:walletId", HandlerWrap(operations.GetWallet))

	// live proposals for a wallet, expiry sweep applied first
	router.GET("/wallets/:walletId/proposals", HandlerWrap(operations.ListPendingProposals))

	// proposals api opens a transaction proposal with the proposer's
	// signature pre-applied
	router.POST("/proposals", HandleWithIdempotency(operations.CreateProposal))

	router.GET("/proposals/:proposalId", HandlerWrap(operations.GetProposal))

	// signatures api applies one signer's authorization and dispatches the
	// broadcast when that signature completes the quorum
	router.POST("/proposals/:proposalId/signatures", HandleWithIdempotency(operations.SignProposal))

	// execute api claims a quorum-satisfied proposal for its single broadcast
	router.POST("/proposals/:proposalId/execute", HandleWithIdempotency(operations.ExecuteProposal))

	// audit trail by wallet or proposal id
	router.GET("/audit/:subjectId", HandlerWrap(operations.AuditTrail))
}
