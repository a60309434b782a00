// Package handlers provides the HTTP handlers of the operator surface.
package handlers

import (
	"errors"
	"net/http"

	"github.com/AtRiskMedia/cohort-go/internal/application/services"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// AuthHandlers serves operator login.
type AuthHandlers struct {
	auth   *services.AuthService
	logger *logging.ChanneledLogger
}

// NewAuthHandlers creates auth handlers with injected dependencies.
func NewAuthHandlers(auth *services.AuthService, logger *logging.ChanneledLogger) *AuthHandlers {
	return &AuthHandlers{auth: auth, logger: logger}
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login exchanges the operator password for a bearer token.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	token, err := h.auth.Login(req.Password)
	switch {
	case errors.Is(err, services.ErrAuthDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "operator auth is not configured"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case err != nil:
		h.logger.Auth().Error("Token generation failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}
