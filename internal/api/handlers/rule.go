package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/inbox-agent/core/internal/api/middleware"
	"github.com/inbox-agent/core/internal/services"
)

// RuleHandler handles rule management requests
type RuleHandler struct {
	ruleService *services.RuleService
}

// NewRuleHandler creates a new RuleHandler instance
func NewRuleHandler(ruleService *services.RuleService) *RuleHandler {
	return &RuleHandler{ruleService: ruleService}
}

// ListRules returns the rules of the user's accounts
// GET /api/rules?account_id=
func (h *RuleHandler) ListRules(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var accountID uint
	if raw := c.Query("account_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondBadRequest(c, "Invalid account_id")
			return
		}
		accountID = uint(id)
	}

	rules, err := h.ruleService.ListRules(userID, accountID)
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rules,
	})
}

// GetRule returns one rule with its actions
// GET /api/rules/:id
func (h *RuleHandler) GetRule(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	rule, err := h.ruleService.GetRule(id, userID)
	if err != nil {
		respondRuleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rule,
	})
}

// CreateRule creates a rule with its action templates
// POST /api/rules
func (h *RuleHandler) CreateRule(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var input services.CreateRuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	rule, err := h.ruleService.CreateRule(userID, input)
	if err != nil {
		respondRuleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    rule,
	})
}

// UpdateRule updates a rule
// PUT /api/rules/:id
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var input services.UpdateRuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	rule, err := h.ruleService.UpdateRule(id, userID, input)
	if err != nil {
		respondRuleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rule,
	})
}

// EnableRule turns a rule on
// PUT /api/rules/:id/enable
func (h *RuleHandler) EnableRule(c *gin.Context) {
	h.setEnabled(c, true)
}

// DisableRule turns a rule off
// PUT /api/rules/:id/disable
func (h *RuleHandler) DisableRule(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *RuleHandler) setEnabled(c *gin.Context, enabled bool) {
	userID, _ := middleware.GetUserIDFromContext(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	rule, err := h.ruleService.SetRuleEnabled(id, userID, enabled)
	if err != nil {
		respondRuleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rule,
	})
}

// DeleteRule deletes a rule
// DELETE /api/rules/:id
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.ruleService.DeleteRule(id, userID); err != nil {
		respondRuleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Rule deleted",
	})
}

// parseIDParam parses the :id path parameter, writing the error response on
// failure
func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondBadRequest(c, "Invalid id")
		return 0, false
	}
	return uint(id), true
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": message,
		},
	})
}

func respondInternalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
	})
}

func respondRuleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrRuleNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Rule not found",
			},
		})
	case errors.Is(err, services.ErrInvalidRuleData), errors.Is(err, services.ErrInvalidActionData):
		respondBadRequest(c, err.Error())
	default:
		respondInternalError(c, err)
	}
}
