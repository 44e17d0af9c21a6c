package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/inbox-agent/core/internal/api/middleware"
	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/engine"
	"github.com/inbox-agent/core/internal/provider"
	"github.com/inbox-agent/core/internal/services"
)

// OrchestratorFor builds a rule orchestrator bound to the account
type OrchestratorFor func(account *models.EmailAccount) (*engine.Orchestrator, error)

// ProviderFor builds the account's provider binding
type ProviderFor func(account *models.EmailAccount) (provider.EmailProvider, error)

// ExecutionHandler exposes the execution audit trail and the manual rule-run
// entry point
type ExecutionHandler struct {
	executions      *services.ExecutionService
	accounts        *services.AccountService
	orchestratorFor OrchestratorFor
	providerFor     ProviderFor
}

// NewExecutionHandler creates a new ExecutionHandler instance
func NewExecutionHandler(executions *services.ExecutionService, accounts *services.AccountService, orchestratorFor OrchestratorFor, providerFor ProviderFor) *ExecutionHandler {
	return &ExecutionHandler{
		executions:      executions,
		accounts:        accounts,
		orchestratorFor: orchestratorFor,
		providerFor:     providerFor,
	}
}

// ListExecutions returns the caller's executed rules
// GET /api/executions?account_id=&thread_id=&status=&limit=&offset=
func (h *ExecutionHandler) ListExecutions(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	input := services.ListExecutionsInput{
		UserID:   userID,
		ThreadID: c.Query("thread_id"),
		Status:   c.Query("status"),
	}
	if raw := c.Query("account_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondBadRequest(c, "Invalid account_id")
			return
		}
		input.AccountID = uint(id)
	}
	if raw := c.Query("limit"); raw != "" {
		input.Limit, _ = strconv.Atoi(raw)
	}
	if raw := c.Query("offset"); raw != "" {
		input.Offset, _ = strconv.Atoi(raw)
	}

	executions, total, err := h.executions.ListExecutions(input)
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"executions": executions,
			"total":      total,
		},
	})
}

// GetExecution returns one executed rule with reasons and actions
// GET /api/executions/:id
func (h *ExecutionHandler) GetExecution(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	execution, err := h.executions.GetExecution(id, userID)
	if err != nil {
		if errors.Is(err, services.ErrExecutionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Execution not found",
				},
			})
			return
		}
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    execution,
	})
}

// ListScheduled returns the caller's not-yet-run scheduled actions
// GET /api/scheduled
func (h *ExecutionHandler) ListScheduled(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	rows, err := h.executions.ListScheduled(userID)
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rows,
	})
}

// RunRulesRequest triggers a rule run for one message
type RunRulesRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	DryRun    bool   `json:"dry_run"`
}

// RunRules runs the account's rules against one message
// POST /api/accounts/:id/run
func (h *ExecutionHandler) RunRules(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	accountID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req RunRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	account, err := h.accounts.GetAccountByIDAndUserID(accountID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Account not found",
			},
		})
		return
	}

	p, err := h.providerFor(account)
	if err != nil {
		respondInternalError(c, err)
		return
	}
	msg, err := p.GetMessage(req.MessageID)
	if err != nil {
		if errors.Is(err, provider.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Message not found",
				},
			})
			return
		}
		respondInternalError(c, err)
		return
	}

	orchestrator, err := h.orchestratorFor(account)
	if err != nil {
		respondInternalError(c, err)
		return
	}

	result, err := orchestrator.RunRulesOnMessage(account, msg, req.DryRun)
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}
