package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AtRiskMedia/cohort-go/internal/application/services"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cohort-go/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(t *testing.T, passwordHash string) (*gin.Engine, *services.AuthService) {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: false,
		DefaultLevel:    slog.LevelError + 4,
	})
	require.NoError(t, err)

	auth := services.NewAuthService(passwordHash, "secret", logger)

	router := gin.New()
	router.Use(AuthMiddleware(auth))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router, auth
}

func get(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func withPasswordHash(t *testing.T, hash string) {
	t.Helper()
	previous := config.AdminPasswordHash
	config.AdminPasswordHash = hash
	t.Cleanup(func() { config.AdminPasswordHash = previous })
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	withPasswordHash(t, "")
	router, _ := newAuthRouter(t, "")

	require.Equal(t, http.StatusOK, get(router, "").Code)
}

func TestAuthRejectsMissingAndMalformedTokens(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	withPasswordHash(t, string(hash))
	router, _ := newAuthRouter(t, string(hash))

	require.Equal(t, http.StatusUnauthorized, get(router, "").Code)
	require.Equal(t, http.StatusUnauthorized, get(router, "Bearer ").Code)
	require.Equal(t, http.StatusUnauthorized, get(router, "Basic abc").Code)
	require.Equal(t, http.StatusUnauthorized, get(router, "Bearer not-a-token").Code)
}

func TestAuthAcceptsMintedToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	withPasswordHash(t, string(hash))
	router, auth := newAuthRouter(t, string(hash))

	token, err := auth.Login("letmein")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, get(router, "Bearer "+token).Code)
}
