package operations

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"finco/txcoordinator/common"
	"finco/txcoordinator/errors"
)

// CreateWallet registers a new M-of-N wallet definition
func CreateWallet(c *gin.Context) {
	var req common.CreateWalletRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		common.RespondError(c, errors.E(errors.BadRequest, "operations.CreateWallet", err))
		return
	}

	if c.Request.Header.Get(common.HeaderUserID) != req.OwnerID {
		common.RespondError(c, errors.Ef(errors.BadRequest, "operations.CreateWallet", errors.ClientUserIdError))
		return
	}

	wallet, err := coord.CreateWallet(c.Request.Context(), req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondResult(c, http.StatusCreated, common.WalletResponse{Wallet: wallet})
}

// GetWallet returns one wallet definition
func GetWallet(c *gin.Context) {
	wallet, err := coord.GetWallet(c.Request.Context(), c.Param("walletId"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, common.WalletResponse{Wallet: wallet})
}
