package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(accessExp, refreshExp time.Duration) *JWTAuthenticator {
	return NewJWTAuthenticator(
		"access-secret", "refresh-secret",
		"shamba-test", "shamba-test",
		accessExp, refreshExp,
	)
}

func TestGenerateAndParseAccessClaims(t *testing.T) {
	a := newTestAuthenticator(time.Hour, 24*time.Hour)

	in := Claims{
		ActorID:     42,
		UserID:      7,
		Role:        "FARMER",
		Roles:       []string{"FARMER", "BUYER"},
		Permissions: []string{"requests:read", "orders:write"},
	}

	accessToken, refreshToken, err := a.GenerateTokens(in)
	require.NoError(t, err)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)
	assert.NotEqual(t, accessToken, refreshToken)

	out, err := a.ParseAccessClaims(accessToken)
	require.NoError(t, err)
	assert.Equal(t, in.ActorID, out.ActorID)
	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, in.Role, out.Role)
	assert.Equal(t, in.Roles, out.Roles)
	assert.Equal(t, in.Permissions, out.Permissions)
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	a := newTestAuthenticator(-time.Minute, 24*time.Hour)

	accessToken, _, err := a.GenerateTokens(Claims{ActorID: 1, UserID: 1, Role: "BUYER"})
	require.NoError(t, err)

	_, err = a.ParseAccessClaims(accessToken)
	assert.Error(t, err)
}

func TestRefreshSecretIsNotAccessSecret(t *testing.T) {
	a := newTestAuthenticator(time.Hour, 24*time.Hour)

	_, refreshToken, err := a.GenerateTokens(Claims{ActorID: 1, UserID: 1, Role: "BUYER"})
	require.NoError(t, err)

	// A refresh token must never pass access-token validation.
	_, err = a.ValidateAccessToken(refreshToken)
	assert.Error(t, err)

	_, err = a.ValidateRefreshToken(refreshToken)
	assert.NoError(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	a := newTestAuthenticator(time.Hour, 24*time.Hour)

	_, err := a.ParseAccessClaims("not.a.token")
	assert.Error(t, err)
}
