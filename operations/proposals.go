package operations

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"finco/txcoordinator/common"
	"finco/txcoordinator/errors"
)

// CreateProposal opens a transaction proposal against a wallet. The proposer
// signs implicitly: their artifact is applied before the proposal is visible
// to anyone else.
func CreateProposal(c *gin.Context) {
	var req common.CreateProposalRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		common.RespondError(c, errors.E(errors.BadRequest, "operations.CreateProposal", err))
		return
	}

	if c.Request.Header.Get(common.HeaderUserID) != req.ProposerID {
		common.RespondError(c, errors.Ef(errors.BadRequest, "operations.CreateProposal", errors.ClientUserIdError))
		return
	}

	proposal, err := coord.CreateProposal(c.Request.Context(), req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondResult(c, http.StatusCreated, common.NewProposalResponse(proposal))
}

// GetProposal returns one proposal with its collected signature count
func GetProposal(c *gin.Context) {
	proposal, err := coord.GetProposal(c.Request.Context(), c.Param("proposalId"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondResult(c, http.StatusOK, common.NewProposalResponse(proposal))
}

// ListPendingProposals returns the wallet's live proposals
func ListPendingProposals(c *gin.Context) {
	proposals, err := coord.ListPendingProposals(c.Request.Context(), c.Param("walletId"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	resp := make([]common.ProposalResponse, 0, len(proposals))
	for i := range proposals {
		resp = append(resp, common.NewProposalResponse(&proposals[i]))
	}
	common.RespondResult(c, http.StatusOK, resp)
}

// SignProposal applies one signer's authorization and, when that authorization
// completes the quorum, makes a best-effort dispatch in the same request. A
// lost dispatch race is not an error for the signer: another caller is
// already broadcasting, and the fresh status says so.
func SignProposal(c *gin.Context) {
	var req common.SignProposalRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		common.RespondError(c, errors.E(errors.BadRequest, "operations.SignProposal", err))
		return
	}

	if c.Request.Header.Get(common.HeaderUserID) != req.SignerID {
		common.RespondError(c, errors.Ef(errors.BadRequest, "operations.SignProposal", errors.ClientUserIdError))
		return
	}

	proposalID := c.Param("proposalId")
	proposal, err := coord.SignTransaction(c.Request.Context(), proposalID, req.SignerID, req.Signature)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if proposal.Status == common.ProposalQuorumReached {
		if executed, execErr := coord.TryExecute(c.Request.Context(), proposalID); execErr == nil {
			proposal = executed
		} else if refreshed, getErr := coord.GetProposal(c.Request.Context(), proposalID); getErr == nil {
			proposal = refreshed
		}
	}

	common.RespondResult(c, http.StatusOK, common.NewProposalResponse(proposal))
}
