package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// SystemHandlers exposes runtime logging controls on the operator surface.
type SystemHandlers struct {
	logger *logging.ChanneledLogger
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(logger *logging.ChanneledLogger) *SystemHandlers {
	return &SystemHandlers{logger: logger}
}

// GetLogLevels returns the current log level of every channel.
func (h *SystemHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": h.logger.GetChannelLevels()})
}

type logLevelRequest struct {
	Channel string `json:"channel" binding:"required"`
	Level   string `json:"level" binding:"required"`
}

// SetLogLevel adjusts one channel's log level at runtime.
func (h *SystemHandlers) SetLogLevel(c *gin.Context) {
	var req logLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel and level are required"})
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(req.Level)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown level " + req.Level})
		return
	}

	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.System().Info("Log level changed", "channel", req.Channel, "level", level.String())
	c.JSON(http.StatusOK, gin.H{"channel": req.Channel, "level": level.String()})
}
