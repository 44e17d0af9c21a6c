package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inbox-agent/core/internal/api/middleware"
	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/services"
)

// SettingsHandler handles user settings related requests
type SettingsHandler struct {
	userService *services.UserService
	logService  *services.LogService
}

// NewSettingsHandler creates a new SettingsHandler instance
func NewSettingsHandler(userService *services.UserService, logService *services.LogService) *SettingsHandler {
	return &SettingsHandler{
		userService: userService,
		logService:  logService,
	}
}

// UserSettingsResponse represents the response for user settings
type UserSettingsResponse struct {
	OutboundEnabled    bool   `json:"outbound_enabled"`
	MaxSendsPerDay     int    `json:"max_sends_per_day"`
	BlockedRecipients  string `json:"blocked_recipients"`
	AutomationEnabled  bool   `json:"automation_enabled"`
	ColdEmailDetection bool   `json:"cold_email_detection"`
	DigestEnabled      bool   `json:"digest_enabled"`
}

// UpdateSettingsRequest represents the request to update user settings
type UpdateSettingsRequest struct {
	OutboundEnabled    *bool   `json:"outbound_enabled"`
	MaxSendsPerDay     *int    `json:"max_sends_per_day"`
	BlockedRecipients  *string `json:"blocked_recipients"`
	AutomationEnabled  *bool   `json:"automation_enabled"`
	ColdEmailDetection *bool   `json:"cold_email_detection"`
	DigestEnabled      *bool   `json:"digest_enabled"`
}

// toSettingsResponse converts UserSettings model to UserSettingsResponse
func toSettingsResponse(settings *models.UserSettings) UserSettingsResponse {
	return UserSettingsResponse{
		OutboundEnabled:    settings.OutboundEnabled,
		MaxSendsPerDay:     settings.MaxSendsPerDay,
		BlockedRecipients:  settings.BlockedRecipients,
		AutomationEnabled:  settings.AutomationEnabled,
		ColdEmailDetection: settings.ColdEmailDetection,
		DigestEnabled:      settings.DigestEnabled,
	}
}

// GetSettings returns the current user's settings
// GET /api/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	settings, err := h.userService.GetUserSettings(userID)
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toSettingsResponse(settings),
	})
}

// UpdateSettings updates the current user's settings
// PUT /api/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	// Get current settings
	settings, err := h.userService.GetUserSettings(userID)
	if err != nil {
		respondInternalError(c, err)
		return
	}

	// Update only provided fields
	if req.OutboundEnabled != nil {
		settings.OutboundEnabled = *req.OutboundEnabled
	}
	if req.MaxSendsPerDay != nil {
		if *req.MaxSendsPerDay < 0 {
			respondBadRequest(c, "max_sends_per_day must not be negative")
			return
		}
		settings.MaxSendsPerDay = *req.MaxSendsPerDay
	}
	if req.BlockedRecipients != nil {
		settings.BlockedRecipients = *req.BlockedRecipients
	}
	if req.AutomationEnabled != nil {
		settings.AutomationEnabled = *req.AutomationEnabled
	}
	if req.ColdEmailDetection != nil {
		settings.ColdEmailDetection = *req.ColdEmailDetection
	}
	if req.DigestEnabled != nil {
		settings.DigestEnabled = *req.DigestEnabled
	}

	if err := h.userService.UpdateUserSettings(userID, settings); err != nil {
		respondInternalError(c, err)
		return
	}

	_ = h.logService.LogInfo(userID, models.LogModuleUser, "settings_update", "User settings updated", map[string]interface{}{
		"outbound_enabled":   settings.OutboundEnabled,
		"automation_enabled": settings.AutomationEnabled,
		"max_sends_per_day":  settings.MaxSendsPerDay,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toSettingsResponse(settings),
	})
}
