package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"fruition-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testItem(id, name string, qty int, created time.Time) *model.InventoryItem {
	return &model.InventoryItem{
		ID:           id,
		Name:         name,
		Quantity:     qty,
		Unit:         model.DefaultUnit,
		PurchaseDate: created,
		Status:       model.StatusActive,
		CreatedAt:    created,
		CreatedBy:    "u1",
	}
}

func TestRebindNumbersPlaceholders(t *testing.T) {
	s := &SQLStore{dialect: postgresDialect}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", s.q("SELECT a FROM t WHERE x = ? AND y = ?"))

	s = &SQLStore{dialect: sqliteDialect}
	assert.Equal(t, "x = ?", s.q("x = ?"))
}

func TestInventoryNewestFirstAndScoped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertInventoryItem(ctx, "users/u1/inventory", testItem("a", "Apple", 3, base)))
	require.NoError(t, store.InsertInventoryItem(ctx, "users/u1/inventory", testItem("b", "Banana", 2, base.Add(time.Hour))))
	require.NoError(t, store.InsertInventoryItem(ctx, "users/u2/inventory", testItem("c", "Kiwi", 1, base)))

	items, err := store.ListInventory(ctx, "users/u1/inventory")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "a", items[1].ID)
	assert.True(t, items[1].PurchaseDate.Equal(base))
	assert.Equal(t, model.StatusActive, items[0].Status)

	empty, err := store.ListInventory(ctx, "households/none/inventory")
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}

func TestConditionalQuantityWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	scope := "users/u1/inventory"
	require.NoError(t, store.InsertInventoryItem(ctx, scope, testItem("a", "Apple", 3, time.Now())))

	require.NoError(t, store.UpdateQuantity(ctx, scope, "a", 3, 2))
	assert.ErrorIs(t, store.UpdateQuantity(ctx, scope, "a", 3, 1), model.ErrConflict)
	assert.ErrorIs(t, store.DeleteIfQuantity(ctx, scope, "a", 5), model.ErrConflict)
	assert.ErrorIs(t, store.UpdateQuantity(ctx, scope, "missing", 1, 0), model.ErrNotFound)

	require.NoError(t, store.DeleteIfQuantity(ctx, scope, "a", 2))
	assert.ErrorIs(t, store.DeleteIfQuantity(ctx, scope, "a", 2), model.ErrNotFound)
	assert.ErrorIs(t, store.DeleteInventoryItem(ctx, scope, "a"), model.ErrNotFound)
}

func TestLedgerPerUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendConsumption(ctx, &model.ConsumptionEvent{ID: "c1", UserID: "u1", FruitName: "Apple", Amount: 1, ConsumedAt: now}))
	require.NoError(t, store.AppendConsumption(ctx, &model.ConsumptionEvent{ID: "c2", UserID: "u1", FruitName: "Kiwi", Amount: 2, ConsumedAt: now.Add(time.Minute), HouseholdID: "h1"}))
	require.NoError(t, store.AppendConsumption(ctx, &model.ConsumptionEvent{ID: "c3", UserID: "u2", FruitName: "Kiwi", Amount: 1, ConsumedAt: now}))
	require.NoError(t, store.AppendWaste(ctx, &model.WasteEvent{ID: "w1", UserID: "u1", FruitName: "Pear", Amount: 1, WastedAt: now, Reason: model.DefaultWasteReason}))

	consumed, err := store.ListConsumption(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, consumed, 2)
	assert.Equal(t, "c2", consumed[0].ID)
	assert.Equal(t, "h1", consumed[0].HouseholdID)

	wasted, err := store.ListWaste(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, wasted, 1)
	assert.Equal(t, "Expired", wasted[0].Reason)

	none, err := store.ListWaste(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	p := &model.UserProfile{UserID: "u1", Email: "a@example.com", JoinedAt: time.Now()}
	require.NoError(t, store.CreateProfileWithMemberID(ctx, p))
	assert.Equal(t, int64(1), p.MemberID)

	dup := &model.UserProfile{UserID: "u1", JoinedAt: time.Now()}
	assert.ErrorIs(t, store.CreateProfileWithMemberID(ctx, dup), model.ErrProfileExists)

	total, err := store.TotalUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	loc := model.Location{City: "Lisbon", Region: "11", Country: "Portugal", Label: "Lisbon, 11"}
	require.NoError(t, store.UpdateLocation(ctx, "u1", loc))
	require.NoError(t, store.UpdateSettings(ctx, "u1", model.Settings{TimeZone: "Europe/Lisbon", HourCycle: "h23"}))
	seenAt := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.TouchLastActive(ctx, "u1", seenAt))
	require.NoError(t, store.SetDisabled(ctx, "u1", true))
	require.NoError(t, store.OverrideMemberID(ctx, "u1", 42))

	got, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.MemberID)
	assert.True(t, got.Disabled)
	assert.Equal(t, "Europe/Lisbon", got.Settings.TimeZone)
	require.NotNil(t, got.Location)
	assert.Equal(t, "Lisbon, 11", got.Location.Label)
	require.NotNil(t, got.LastActive)
	assert.WithinDuration(t, seenAt, *got.LastActive, time.Second)

	assert.ErrorIs(t, store.SetDisabled(ctx, "ghost", true), model.ErrNotFound)
}

func TestConcurrentProfilesGetContiguousMemberIDs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	ids := make([]int64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := &model.UserProfile{UserID: fmt.Sprintf("user-%d", i), JoinedAt: time.Now()}
			errs[i] = store.CreateProfileWithMemberID(ctx, p)
			ids[i] = p.MemberID
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id)
	}

	total, err := store.TotalUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), total)
}

func TestHouseholdMembers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	h := &model.Household{ID: "h1", Name: "Flat", CreatedBy: "u1", CreatedAt: time.Now()}
	require.NoError(t, store.CreateHousehold(ctx, h))
	_, err := store.GetHousehold(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)

	for _, uid := range []string{"u1", "u2", "u3"} {
		require.NoError(t, store.CreateProfileWithMemberID(ctx, &model.UserProfile{UserID: uid, JoinedAt: time.Now()}))
	}
	require.NoError(t, store.SetHousehold(ctx, "u1", "h1"))
	require.NoError(t, store.SetHousehold(ctx, "u2", "h1"))

	members, err := store.ListMembers(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "u1", members[0].UserID)

	require.NoError(t, store.SetHousehold(ctx, "u2", ""))
	members, err = store.ListMembers(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestFeedEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertFeedEvents(ctx, nil))
	require.NoError(t, store.InsertFeedEvents(ctx, []model.FeedEvent{
		{ID: "f1", Type: model.FeedConsumed, FruitName: "Mango", Amount: 1, MemberLabel: "Member #1", Icon: "🔥", Timestamp: now},
		{ID: "f2", Type: model.FeedWaste, FruitName: "Pear", Amount: 2, MemberLabel: "Anonymous Member", Icon: "🗑️", Timestamp: now.Add(time.Second)},
	}))

	events, err := store.RecentFeedEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "f2", events[0].ID)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats["public_feed"])
	assert.Equal(t, "sqlite", stats["backend"])
}
