package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/inbox-agent/core/internal/api/middleware"
	"github.com/inbox-agent/core/internal/services"
)

// LogHandler exposes the audit log
type LogHandler struct {
	logService *services.LogService
}

// NewLogHandler creates a new LogHandler instance
func NewLogHandler(logService *services.LogService) *LogHandler {
	return &LogHandler{logService: logService}
}

// ListLogs returns the current user's audit log entries, newest first
// GET /api/logs
func (h *LogHandler) ListLogs(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, total, err := h.logService.ListLogs(services.ListLogsInput{
		UserID: userID,
		Level:  c.Query("level"),
		Module: c.Query("module"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"logs":  logs,
			"total": total,
		},
	})
}
