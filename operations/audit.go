package operations

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finco/txcoordinator/common"
)

// AuditTrail returns the append-only transition history for a wallet or
// proposal, oldest first.
func AuditTrail(c *gin.Context) {
	entries, err := coord.AuditTrail(c.Request.Context(), c.Param("subjectId"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, entries)
}
