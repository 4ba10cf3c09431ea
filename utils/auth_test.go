package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityFromToken(t *testing.T) {
	SetJWTSecret("test-secret")
	t.Cleanup(func() { SetJWTSecret("") })

	token, err := GenerateJWTToken("u1", "alice@example.com", time.Hour)
	require.NoError(t, err)

	id, err := IdentityFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "alice", id.DisplayName())
}

func TestIdentityFromTokenFallsBackToEmail(t *testing.T) {
	SetJWTSecret("test-secret")
	t.Cleanup(func() { SetJWTSecret("") })

	token, err := GenerateJWTToken("", "bob@example.com", time.Hour)
	require.NoError(t, err)

	id, err := IdentityFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", id.UserID)
}

func TestIdentityFromTokenRejects(t *testing.T) {
	SetJWTSecret("test-secret")
	t.Cleanup(func() { SetJWTSecret("") })

	expired, err := GenerateJWTToken("u1", "a@b.c", -time.Minute)
	require.NoError(t, err)
	_, err = IdentityFromToken(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = IdentityFromToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = IdentityFromToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	SetJWTSecret("other-secret")
	good, err := GenerateJWTToken("u1", "a@b.c", time.Hour)
	require.NoError(t, err)
	SetJWTSecret("test-secret")
	_, err = IdentityFromToken(good)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}

func TestExtractNameFromEmail(t *testing.T) {
	assert.Equal(t, "carol", ExtractNameFromEmail("carol@example.com"))
	assert.Equal(t, "plain", ExtractNameFromEmail("plain"))
}
