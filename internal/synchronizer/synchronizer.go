// Package synchronizer keeps a session's published inventory list in step
// with the store. It holds at most one live subscription; every change
// signal triggers a full re-read and a freshness pass with a single "now".
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"fruition-api/internal/freshness"
	"fruition-api/internal/model"
	"fruition-api/internal/pubsub"
	"fruition-api/pkg/clock"
)

// ErrSubscriptionClosed is recorded when the broker ends a subscription
// that was not torn down locally.
var ErrSubscriptionClosed = errors.New("subscription closed by broker")

// Source reads the full inventory list under a scope path, newest first.
type Source interface {
	ListInventory(ctx context.Context, scope string) ([]model.InventoryItem, error)
}

// Synchronizer owns the live subscription of one session.
type Synchronizer struct {
	source    Source
	broker    pubsub.Broker
	table     freshness.ShelfLife
	clock     clock.Clock
	inventory *Inventory

	// mu serializes subscription changes.
	mu     sync.Mutex
	path   string
	sub    pubsub.Subscription
	cancel context.CancelFunc
	done   chan struct{}

	errMu   sync.RWMutex
	lastErr error
}

// New creates a synchronizer with an empty published list.
func New(source Source, broker pubsub.Broker, table freshness.ShelfLife, clk clock.Clock) *Synchronizer {
	return &Synchronizer{
		source:    source,
		broker:    broker,
		table:     table,
		clock:     clk,
		inventory: NewInventory(),
	}
}

// Inventory returns the published list.
func (s *Synchronizer) Inventory() *Inventory {
	return s.inventory
}

// Path returns the scope path of the live subscription, or "" if none.
func (s *Synchronizer) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Err returns the error that ended the last subscription, if any.
func (s *Synchronizer) Err() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.lastErr
}

// Subscribe tears down the current subscription, then subscribes to path
// and publishes its initial snapshot before returning. An empty path
// leaves the session without a subscription and with an empty list.
// On error the list is empty and the error is also kept for Err.
func (s *Synchronizer) Subscribe(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownLocked()
	s.setErr(nil)

	if path == "" {
		s.inventory.Replace(nil)
		return nil
	}

	// Subscribe before the initial read so no change in between is lost.
	sub, err := s.broker.Subscribe(ctx, path)
	if err != nil {
		s.fail(path, err)
		return fmt.Errorf("failed to subscribe to %s: %w", path, err)
	}

	items, err := s.load(ctx, path)
	if err != nil {
		sub.Close()
		s.fail(path, err)
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	s.inventory.Replace(items)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.path = path
	s.sub = sub
	s.cancel = cancel
	s.done = done

	go s.run(runCtx, path, sub, done)

	log.Printf("[Synchronizer] Subscribed to %s (%d items)", path, len(items))
	return nil
}

// Clear tears down the subscription and empties the list.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownLocked()
	s.inventory.Replace(nil)
}

// Close tears down the subscription and leaves the list as it is.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownLocked()
}

// teardownLocked stops the subscription goroutine and waits for it, so no
// callback of the old subscription can run after it returns.
func (s *Synchronizer) teardownLocked() {
	if s.cancel == nil {
		s.path = ""
		return
	}
	s.cancel()
	s.sub.Close()
	<-s.done

	s.path = ""
	s.sub = nil
	s.cancel = nil
	s.done = nil
}

func (s *Synchronizer) run(ctx context.Context, path string, sub pubsub.Subscription, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C():
			if ctx.Err() != nil {
				return
			}
			if !ok {
				s.fail(path, ErrSubscriptionClosed)
				return
			}
			items, err := s.load(ctx, path)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				sub.Close()
				s.fail(path, err)
				return
			}
			s.inventory.Replace(items)
		}
	}
}

// load reads the full list and derives freshness with one "now".
func (s *Synchronizer) load(ctx context.Context, path string) ([]model.InventoryItem, error) {
	items, err := s.source.ListInventory(ctx, path)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for i := range items {
		items[i] = freshness.Apply(s.table, items[i], now)
	}
	return items, nil
}

// fail clears the list and records err. No retry: a new Subscribe call is
// needed to resume.
func (s *Synchronizer) fail(path string, err error) {
	log.Printf("[Synchronizer] Subscription to %s failed: %v", path, err)
	s.inventory.Replace(nil)
	s.setErr(err)
}

func (s *Synchronizer) setErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}
