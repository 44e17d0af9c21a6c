package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inbox-agent/core/internal/api/middleware"
	"github.com/inbox-agent/core/internal/engine"
	"github.com/inbox-agent/core/internal/services"
)

// ApprovalHandler handles the approval workflow for gated actions
type ApprovalHandler struct {
	executions  *services.ExecutionService
	executorFor engine.ExecutorFor
}

// NewApprovalHandler creates a new ApprovalHandler instance
func NewApprovalHandler(executions *services.ExecutionService, executorFor engine.ExecutorFor) *ApprovalHandler {
	return &ApprovalHandler{
		executions:  executions,
		executorFor: executorFor,
	}
}

// ListApprovals returns the caller's actions awaiting a decision
// GET /api/approvals
func (h *ApprovalHandler) ListApprovals(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	actions, err := h.executions.ListPendingApprovals(userID)
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    actions,
	})
}

// Approve approves a pending action and performs it
// POST /api/approvals/:id/approve
func (h *ApprovalHandler) Approve(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	executor, err := h.executorForAction(id)
	if err != nil {
		respondApprovalError(c, err)
		return
	}

	result, err := executor.Approve(id, userID)
	if err != nil {
		respondApprovalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// Deny denies a pending action without performing it
// POST /api/approvals/:id/deny
func (h *ApprovalHandler) Deny(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	executor, err := h.executorForAction(id)
	if err != nil {
		respondApprovalError(c, err)
		return
	}

	if err := executor.Deny(id, userID); err != nil {
		respondApprovalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Action denied",
	})
}

// executorForAction builds an executor bound to the account that owns the
// action
func (h *ApprovalHandler) executorForAction(actionID uint) (*engine.Executor, error) {
	action, err := h.executions.GetAction(actionID)
	if err != nil {
		return nil, engine.ErrActionNotFound
	}
	if action.Account == nil {
		return nil, engine.ErrActionNotFound
	}
	return h.executorFor(action.Account)
}

func respondApprovalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrActionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Action not found",
			},
		})
	case errors.Is(err, engine.ErrNotActionOwner):
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You do not own this action",
			},
		})
	case errors.Is(err, engine.ErrNotPendingApproval):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CONFLICT",
				"message": "Action is not pending approval",
			},
		})
	default:
		respondInternalError(c, err)
	}
}
