package services

import (
	"errors"

	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/cohort-go/pkg/config"
	"golang.org/x/crypto/bcrypt"
)

// ErrAuthDisabled reports that no operator password hash is configured.
var ErrAuthDisabled = errors.New("operator auth is not configured")

// ErrInvalidCredentials reports a failed password check.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService authenticates the operator surface.
type AuthService struct {
	passwordHash string
	jwtSecret    string
	logger       *logging.ChanneledLogger
}

// NewAuthService creates the auth service from the configured password hash
// and JWT secret.
func NewAuthService(passwordHash, jwtSecret string, logger *logging.ChanneledLogger) *AuthService {
	return &AuthService{
		passwordHash: passwordHash,
		jwtSecret:    jwtSecret,
		logger:       logger,
	}
}

// Login verifies the operator password and mints a bearer token.
func (s *AuthService) Login(password string) (string, error) {
	if s.passwordHash == "" {
		return "", ErrAuthDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		s.logger.Auth().Warn("Operator login rejected")
		return "", ErrInvalidCredentials
	}

	token, err := security.GenerateOperatorToken(s.jwtSecret, config.TokenLifetime)
	if err != nil {
		return "", err
	}

	s.logger.Auth().Info("Operator login accepted")
	return token, nil
}

// ValidateToken checks a bearer token from the operator surface.
func (s *AuthService) ValidateToken(token string) error {
	_, err := security.ValidateJWT(token, s.jwtSecret)
	return err
}
