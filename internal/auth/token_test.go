package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken(42, domain.RoleManager)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.After(time.Now()))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, 42, claims.UserID)
	require.Equal(t, domain.RoleManager, claims.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tm := auth.NewTokenManager("secret-a", 60)
	other := auth.NewTokenManager("secret-b", 60)

	token, _, err := tm.GenerateToken(1, domain.RoleAgent)
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	require.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 60)

	_, err := tm.ParseToken("not-a-token")
	require.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("correct horse", 4)
	require.NoError(t, err)
	require.NoError(t, auth.ComparePassword(hash, "correct horse"))
	require.Error(t, auth.ComparePassword(hash, "wrong"))
}
