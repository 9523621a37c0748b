package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.db.AddUser("Ada@Example.com", env.hash(t, "secret123"), true)

	u, err := env.auth.Authenticate(ctx, "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)

	_, err = env.auth.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.auth.Authenticate(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	signed, claims, err := env.auth.IssueToken("user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := env.auth.ValidateToken(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, claims.ID, got.ID)
}

func TestValidateTokenRejectsGarbageAndForeignSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.ValidateToken(ctx, "not-a-token")
	assert.Error(t, err)

	other := newTestEnv(t)
	other.cfg.JWTSecret = "another-secret"
	signed, _, err := other.auth.IssueToken("user-1")
	require.NoError(t, err)
	_, err = env.auth.ValidateToken(ctx, signed)
	assert.Error(t, err)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	signed, claims, err := env.auth.IssueToken("user-1")
	require.NoError(t, err)
	require.NoError(t, env.auth.Revoke(ctx, claims))

	_, err = env.auth.ValidateToken(ctx, signed)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	ttl := env.mr.TTL("auth:revoked:" + claims.ID)
	assert.Greater(t, ttl, 50*time.Minute)
}

func TestVerifyEmailConsumesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.db.AddUser("new@example.com", env.hash(t, "secret123"), false)

	token, err := env.auth.IssueVerificationToken(ctx, u.ID)
	require.NoError(t, err)

	id, err := env.auth.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	got, err := env.db.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified)

	_, err = env.auth.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.VerifyEmail(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)
}
