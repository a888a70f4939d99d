package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fruition-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actor(userID string, memberID int64) *model.UserProfile {
	return &model.UserProfile{UserID: userID, MemberID: memberID,
		Location: &model.Location{City: "Lisbon", Label: "Lisbon, PT"}}
}

func addBanana(t *testing.T, env *testEnv, a *model.UserProfile, qty int) model.InventoryItem {
	t.Helper()
	item, err := env.ledger.AddItem(context.Background(), a, model.NewItem{Name: "banana", Quantity: qty})
	require.NoError(t, err)
	return *item
}

func TestAddItemNormalizesAndDefaults(t *testing.T) {
	env := newTestEnv(t)
	a := actor("u1", 1)

	item := addBanana(t, env, a, 3)
	assert.Equal(t, "Banana", item.Name)
	assert.Equal(t, model.DefaultUnit, item.Unit)
	assert.Equal(t, model.StatusActive, item.Status)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), item.PurchaseDate)
	assert.Equal(t, "u1", item.CreatedBy)

	stored, err := env.store.ListInventory(context.Background(), "users/u1/inventory")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, item.ID, stored[0].ID)
}

func TestAddItemInFutureIsPlanned(t *testing.T) {
	env := newTestEnv(t)

	item, err := env.ledger.AddItem(context.Background(), actor("u1", 1), model.NewItem{
		Name: "Mango", Quantity: 2, PurchaseDate: testNow.Add(72 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPlanned, item.Status)
}

func TestAddItemValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.AddItem(ctx, actor("u1", 1), model.NewItem{Name: "  ", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = env.ledger.AddItem(ctx, actor("u1", 1), model.NewItem{Name: "Kiwi", Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.ledger.AddItem(ctx, &model.UserProfile{}, model.NewItem{Name: "Kiwi", Quantity: 1})
	assert.ErrorIs(t, err, ErrAnonymous)
}

func TestConsumeAllRemovesItemAndRecordsAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := actor("u1", 7)
	item := addBanana(t, env, a, 3)

	event, err := env.ledger.Consume(ctx, a, mapView{item.ID: item}, item.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, event.Amount)
	assert.Equal(t, "Banana", event.FruitName)

	stored, err := env.store.ListInventory(ctx, "users/u1/inventory")
	require.NoError(t, err)
	assert.Empty(t, stored)

	consumed, err := env.store.ListConsumption(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, consumed, 1)
	assert.Equal(t, 3, consumed[0].Amount)

	feed := env.sink.Events()
	require.Len(t, feed, 1)
	assert.Equal(t, model.FeedConsumed, feed[0].Type)
	assert.Equal(t, "Member #7", feed[0].MemberLabel)
	assert.Equal(t, "Lisbon, PT", feed[0].Location)
	assert.NotContains(t, feed[0].MemberLabel, "u1")
}

func TestConsumeMoreThanQuantityDeletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := actor("u1", 1)
	item := addBanana(t, env, a, 2)

	event, err := env.ledger.Consume(ctx, a, mapView{item.ID: item}, item.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, event.Amount)

	stored, err := env.store.ListInventory(ctx, "users/u1/inventory")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPartialConsumeDecrements(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := actor("u1", 1)
	item := addBanana(t, env, a, 3)

	_, err := env.ledger.Consume(ctx, a, mapView{item.ID: item}, item.ID, 1)
	require.NoError(t, err)

	stored, err := env.store.ListInventory(ctx, "users/u1/inventory")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 2, stored[0].Quantity)
}

func TestConsumeStaleViewConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := actor("u1", 1)
	item := addBanana(t, env, a, 3)

	// Another device took one without this view seeing it.
	require.NoError(t, env.store.UpdateQuantity(ctx, "users/u1/inventory", item.ID, 3, 2))

	_, err := env.ledger.Consume(ctx, a, mapView{item.ID: item}, item.ID, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConflict))

	consumed, err := env.store.ListConsumption(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, consumed)
	assert.Empty(t, env.sink.Events())
}

func TestConsumeMissingItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := actor("u1", 1)

	_, err := env.ledger.Consume(ctx, a, mapView{}, "nope", 1)
	assert.ErrorIs(t, err, ErrItemNotFound)

	// Visible in the view but already gone from the store.
	ghost := model.InventoryItem{ID: "ghost", Name: "Kiwi", Quantity: 1}
	_, err = env.ledger.Waste(ctx, a, mapView{"ghost": ghost}, "ghost", 1, "")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestConsumeRejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t)
	a := actor("u1", 1)
	item := addBanana(t, env, a, 3)

	_, err := env.ledger.Consume(context.Background(), a, mapView{item.ID: item}, item.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestWasteDefaultsReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := actor("u1", 1)
	item := addBanana(t, env, a, 2)

	event, err := env.ledger.Waste(ctx, a, mapView{item.ID: item}, item.ID, 1, "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultWasteReason, event.Reason)

	wasted, err := env.store.ListWaste(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, wasted, 1)
	assert.Equal(t, "Expired", wasted[0].Reason)

	feed := env.sink.Events()
	require.Len(t, feed, 1)
	assert.Equal(t, model.FeedWaste, feed[0].Type)
	assert.Equal(t, "🗑️", feed[0].Icon)
}

func TestFeedFailureDoesNotFailConsume(t *testing.T) {
	env := newTestEnv(t)
	env.sink.err = errors.New("feed down")
	a := actor("u1", 1)
	item := addBanana(t, env, a, 1)

	_, err := env.ledger.Consume(context.Background(), a, mapView{item.ID: item}, item.ID, 1)
	require.NoError(t, err)

	consumed, err := env.store.ListConsumption(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, consumed, 1)
}

func TestHouseholdWritesLandInSharedScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := actor("u1", 1)
	a.HouseholdID = "HH000001"

	item := addBanana(t, env, a, 1)

	shared, err := env.store.ListInventory(ctx, "households/HH000001/inventory")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, item.ID, shared[0].ID)

	personal, err := env.store.ListInventory(ctx, "users/u1/inventory")
	require.NoError(t, err)
	assert.Empty(t, personal)

	event, err := env.ledger.Consume(ctx, a, mapView{item.ID: item}, item.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "HH000001", event.HouseholdID)

	// The ledger stays personal.
	consumed, err := env.store.ListConsumption(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, consumed, 1)
}

func TestRemoveItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := actor("u1", 1)
	item := addBanana(t, env, a, 1)

	require.NoError(t, env.ledger.RemoveItem(ctx, a, item.ID))
	assert.ErrorIs(t, env.ledger.RemoveItem(ctx, a, item.ID), ErrItemNotFound)

	consumed, err := env.store.ListConsumption(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, consumed)
}
