package handlers

import (
	"net/http"

	"github.com/AtRiskMedia/cohort-go/internal/application/services"
	"github.com/gin-gonic/gin"
)

// StatusHandlers exposes engine liveness and a state snapshot.
type StatusHandlers struct {
	engine *services.Engine
}

// NewStatusHandlers creates status handlers.
func NewStatusHandlers(engine *services.Engine) *StatusHandlers {
	return &StatusHandlers{engine: engine}
}

// Health is the unauthenticated liveness probe.
func (h *StatusHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetStatus returns a consistent snapshot of the engine state, or 503 once
// the state loop has stopped.
func (h *StatusHandlers) GetStatus(c *gin.Context) {
	status, ok := h.engine.Status()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine stopped"})
		return
	}
	c.JSON(http.StatusOK, status)
}
