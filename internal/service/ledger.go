package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fruition-api/internal/fruit"
	"fruition-api/internal/model"
	"fruition-api/internal/pubsub"
	"fruition-api/internal/repository"
	"fruition-api/internal/scope"
	"fruition-api/pkg/clock"
	"fruition-api/pkg/uid"
)

// InventoryView is the last-published inventory list a session acts on.
type InventoryView interface {
	Find(id string) (model.InventoryItem, bool)
}

// Ledger applies inventory mutations and records consumption and waste.
// Every write resolves its target through scope.InventoryPath and is
// followed by a change signal on that path.
type Ledger struct {
	inventory repository.InventoryRepository
	history   repository.LedgerRepository
	broker    pubsub.Broker
	feed      *FeedBroadcaster
	clock     clock.Clock
}

// NewLedger creates a ledger. feed may be nil to disable the public feed.
func NewLedger(
	inventory repository.InventoryRepository,
	history repository.LedgerRepository,
	broker pubsub.Broker,
	feed *FeedBroadcaster,
	clk clock.Clock,
) *Ledger {
	return &Ledger{
		inventory: inventory,
		history:   history,
		broker:    broker,
		feed:      feed,
		clock:     clk,
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddItem stores a new item in the actor's current scope. The purchase
// date is kept at local midnight; a purchase day after today makes the
// item Planned.
func (l *Ledger) AddItem(ctx context.Context, actor *model.UserProfile, in model.NewItem) (*model.InventoryItem, error) {
	path := scope.InventoryPath(actor)
	if path == "" {
		return nil, ErrAnonymous
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrInvalidItem
	}
	if in.Quantity < 1 {
		return nil, ErrInvalidAmount
	}

	loc := actor.TimeLocation(time.UTC)
	now := l.clock.Now().In(loc)
	today := startOfDay(now)

	purchaseDay := today
	if !in.PurchaseDate.IsZero() {
		purchaseDay = startOfDay(in.PurchaseDate.In(loc))
	}

	status := model.StatusActive
	if purchaseDay.After(today) {
		status = model.StatusPlanned
	}

	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = model.DefaultUnit
	}

	item := &model.InventoryItem{
		ID:           uid.New(),
		Name:         fruit.Normalize(in.Name),
		Quantity:     in.Quantity,
		Unit:         unit,
		PurchaseDate: purchaseDay,
		Status:       status,
		CreatedAt:    now,
		CreatedBy:    actor.UserID,
	}
	if err := l.inventory.InsertInventoryItem(ctx, path, item); err != nil {
		return nil, fmt.Errorf("failed to add item: %w", err)
	}
	l.signal(ctx, path)

	log.Printf("[Ledger] %s added %d %s to %s (%s)", actor.UserID, item.Quantity, item.Name, path, item.Status)
	return item, nil
}

// RemoveItem deletes an item from the actor's scope without a ledger record.
func (l *Ledger) RemoveItem(ctx context.Context, actor *model.UserProfile, itemID string) error {
	path := scope.InventoryPath(actor)
	if path == "" {
		return ErrAnonymous
	}
	if err := l.inventory.DeleteInventoryItem(ctx, path, itemID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("failed to remove item: %w", err)
	}
	l.signal(ctx, path)
	return nil
}

// Consume takes amount units of an item out of the inventory and records
// the consumption in the actor's personal history.
func (l *Ledger) Consume(ctx context.Context, actor *model.UserProfile, view InventoryView, itemID string, amount int) (*model.ConsumptionEvent, error) {
	item, err := l.take(ctx, actor, view, itemID, amount)
	if err != nil {
		return nil, err
	}

	event := &model.ConsumptionEvent{
		ID:          uid.New(),
		UserID:      actor.UserID,
		FruitName:   item.Name,
		Amount:      amount,
		ConsumedAt:  l.clock.Now(),
		HouseholdID: actor.HouseholdID,
	}
	if err := l.history.AppendConsumption(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record consumption: %w", err)
	}

	l.feed.BroadcastConsumption(ctx, actor, item.Name, amount)
	return event, nil
}

// Waste takes amount units of an item out of the inventory and records
// the waste in the actor's personal history. An empty reason records
// model.DefaultWasteReason.
func (l *Ledger) Waste(ctx context.Context, actor *model.UserProfile, view InventoryView, itemID string, amount int, reason string) (*model.WasteEvent, error) {
	item, err := l.take(ctx, actor, view, itemID, amount)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(reason) == "" {
		reason = model.DefaultWasteReason
	}
	event := &model.WasteEvent{
		ID:          uid.New(),
		UserID:      actor.UserID,
		FruitName:   item.Name,
		Amount:      amount,
		WastedAt:    l.clock.Now(),
		Reason:      reason,
		HouseholdID: actor.HouseholdID,
	}
	if err := l.history.AppendWaste(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record waste: %w", err)
	}

	l.feed.BroadcastWaste(ctx, actor, item.Name, amount)
	return event, nil
}

// take decrements or deletes an item based on its last-published
// quantity. The store write only applies if the stored quantity still
// matches; otherwise model.ErrConflict is returned and nothing is recorded.
func (l *Ledger) take(ctx context.Context, actor *model.UserProfile, view InventoryView, itemID string, amount int) (model.InventoryItem, error) {
	path := scope.InventoryPath(actor)
	if path == "" {
		return model.InventoryItem{}, ErrAnonymous
	}
	if amount < 1 {
		return model.InventoryItem{}, ErrInvalidAmount
	}

	item, ok := view.Find(itemID)
	if !ok {
		return model.InventoryItem{}, ErrItemNotFound
	}

	quantity := item.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	var err error
	if amount >= quantity {
		err = l.inventory.DeleteIfQuantity(ctx, path, itemID, item.Quantity)
	} else {
		err = l.inventory.UpdateQuantity(ctx, path, itemID, item.Quantity, quantity-amount)
	}
	switch {
	case errors.Is(err, model.ErrNotFound):
		return model.InventoryItem{}, ErrItemNotFound
	case err != nil:
		return model.InventoryItem{}, fmt.Errorf("failed to update inventory: %w", err)
	}

	l.signal(ctx, path)
	return item, nil
}

// signal tells live subscriptions on path to re-read. Best-effort.
func (l *Ledger) signal(ctx context.Context, path string) {
	if l.broker == nil {
		return
	}
	if err := l.broker.Publish(ctx, path, []byte("changed")); err != nil {
		log.Printf("[Ledger] Failed to signal change on %s: %v", path, err)
	}
}
