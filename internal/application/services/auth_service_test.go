package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoginDisabledWithoutHash(t *testing.T) {
	svc := NewAuthService("", "secret", newTestLogger(t))

	_, err := svc.Login("anything")
	require.ErrorIs(t, err, ErrAuthDisabled)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	svc := NewAuthService(string(hash), "secret", newTestLogger(t))

	_, err = svc.Login("wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginMintsValidToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	svc := NewAuthService(string(hash), "secret", newTestLogger(t))

	token, err := svc.Login("letmein")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NoError(t, svc.ValidateToken(token))
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)

	minter := NewAuthService(string(hash), "secret-a", newTestLogger(t))
	verifier := NewAuthService(string(hash), "secret-b", newTestLogger(t))

	token, err := minter.Login("letmein")
	require.NoError(t, err)
	require.Error(t, verifier.ValidateToken(token))
}
