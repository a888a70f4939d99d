package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"fruition-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tokens := NewTokenService(env.kv, env.clock, 5*time.Minute)

	token, ticket, err := tokens.GenerateToken(ctx, model.Identity{UserID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Equal(t, testNow.Add(5*time.Minute), ticket.ExpiresAt)

	got, err := tokens.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, model.Identity{UserID: "u1", Email: "a@example.com"}, got.Identity())

	env.clock.Advance(4 * time.Minute)
	refreshed, err := tokens.RefreshToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(9*time.Minute), refreshed.ExpiresAt)

	env.clock.Advance(4 * time.Minute)
	_, err = tokens.ValidateToken(ctx, token)
	require.NoError(t, err)

	require.NoError(t, tokens.RevokeToken(ctx, token))
	_, err = tokens.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpiresAndRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tokens := NewTokenService(env.kv, env.clock, time.Minute)

	token, _, err := tokens.GenerateToken(ctx, model.Identity{UserID: "u1"})
	require.NoError(t, err)

	env.clock.Advance(2 * time.Minute)
	_, err = tokens.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.ValidateToken(ctx, "vht_abc")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = tokens.GenerateToken(ctx, model.Identity{})
	assert.ErrorIs(t, err, ErrAnonymous)
}
