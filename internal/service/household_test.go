package service

import (
	"context"
	"strings"
	"testing"

	"fruition-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHouseholdLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.open(t, "u1")
	env.open(t, "u2")

	h, err := env.households.Create(ctx, "u1", "  ")
	require.NoError(t, err)
	assert.Equal(t, "My Household", h.Name)
	assert.Len(t, h.ID, 8)

	joined, err := env.households.Join(ctx, "u2", strings.ToLower(h.ID))
	require.NoError(t, err)
	assert.Equal(t, h.ID, joined.ID)

	got, members, err := env.households.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.CreatedBy)
	require.Len(t, members, 2)
	assert.Equal(t, "u1", members[0].UserID)

	require.NoError(t, env.households.Leave(ctx, "u2", h.ID))
	_, members, err = env.households.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestHouseholdErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.open(t, "u1")

	_, err := env.households.Join(ctx, "u1", "NOPE0000")
	assert.ErrorIs(t, err, ErrHouseholdNotFound)

	_, _, err = env.households.Get(ctx, "NOPE0000")
	assert.ErrorIs(t, err, ErrHouseholdNotFound)

	assert.ErrorIs(t, env.households.Leave(ctx, "u1", ""), ErrNotInHousehold)

	_, err = env.households.Create(ctx, "ghost", "Nobody")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
