package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fruition-api/internal/cache"
	"fruition-api/internal/fruit"
	"fruition-api/internal/model"
	"fruition-api/internal/notify"
	"fruition-api/internal/pubsub"
	"fruition-api/internal/repository"
	"fruition-api/pkg/clock"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

// recordingSink collects feed events and can be told to fail.
type recordingSink struct {
	mu     sync.Mutex
	events []model.FeedEvent
	err    error
}

func (s *recordingSink) Add(ctx context.Context, event model.FeedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []model.FeedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.FeedEvent, len(s.events))
	copy(out, s.events)
	return out
}

// mapView is a fixed last-published list.
type mapView map[string]model.InventoryItem

func (v mapView) Find(id string) (model.InventoryItem, bool) {
	it, ok := v[id]
	return it, ok
}

type staticLocator struct {
	loc *model.Location
	err error
}

func (l staticLocator) Lookup(ctx context.Context, ip string) (*model.Location, error) {
	if l.err != nil {
		return nil, l.err
	}
	cp := *l.loc
	return &cp, nil
}

var errLookup = errors.New("lookup failed")

type testEnv struct {
	store      *repository.SQLStore
	broker     *pubsub.MemoryBroker
	kv         *cache.MemoryCache
	clock      *clock.Manual
	sink       *recordingSink
	identity   *IdentityService
	households *HouseholdService
	ledger     *Ledger
	history    *notify.History
	sessions   *SessionManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "fruition.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewManual(testNow)
	broker := pubsub.NewMemoryBroker()
	kv := cache.NewMemoryCacheWithClock(clk)
	t.Cleanup(func() {
		kv.Close()
		broker.Close()
	})

	sink := &recordingSink{}
	env := &testEnv{
		store:      store,
		broker:     broker,
		kv:         kv,
		clock:      clk,
		sink:       sink,
		identity:   NewIdentityService(store, staticLocator{err: errLookup}, clk),
		households: NewHouseholdService(store, store, clk),
		ledger:     NewLedger(store, store, broker, NewFeedBroadcaster(sink, clk, 1), clk),
		history:    notify.NewHistory(kv, clk, notify.DefaultHistoryLimit),
	}
	env.sessions = NewSessionManager(SessionDeps{
		Identity:   env.identity,
		Households: env.households,
		Ledger:     env.ledger,
		Source:     store,
		Broker:     broker,
		ShelfLife:  fruit.DefaultTable(),
		Notify: notify.Config{
			KV:      kv,
			History: env.history,
			Alerter: notify.LogAlerter{},
			Clock:   clk,
		},
		Clock: clk,
	})
	t.Cleanup(env.sessions.CloseAll)
	return env
}

func (e *testEnv) open(t *testing.T, userID string) *Session {
	t.Helper()
	s, err := e.sessions.Open(context.Background(), model.Identity{UserID: userID, Email: userID + "@example.com"}, "")
	require.NoError(t, err)
	return s
}

func waitForLen(t *testing.T, s *Session, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Inventory().Len() == n },
		2*time.Second, 10*time.Millisecond, "inventory never reached %d items", n)
}
