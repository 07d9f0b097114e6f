package operations

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finco/txcoordinator/common"
)

// ExecuteProposal claims and dispatches a quorum-satisfied proposal. Losers
// of the claim race get a conflict and must re-fetch instead of retrying the
// broadcast themselves.
func ExecuteProposal(c *gin.Context) {
	proposal, err := coord.TryExecute(c.Request.Context(), c.Param("proposalId"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, common.NewProposalResponse(proposal))
}

// Housekeeping sweeps expired proposals. Helper route for the cron job; also
// doubles as the liveness probe.
func Housekeeping(c *gin.Context) {
	swept, err := coord.ExpireStale(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, gin.H{"expiredProposals": swept})
}
