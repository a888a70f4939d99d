package synchronizer

import (
	"sync"

	"fruition-api/internal/model"
)

// Observer is called with every newly published list.
type Observer func(items []model.InventoryItem)

type observerEntry struct {
	id int
	fn Observer
}

// Inventory is the published inventory list of one session. Replace is
// the only way to change it.
type Inventory struct {
	mu        sync.RWMutex
	items     []model.InventoryItem
	observers []observerEntry
	nextID    int
}

// NewInventory returns an empty list.
func NewInventory() *Inventory {
	return &Inventory{items: []model.InventoryItem{}}
}

// Replace swaps in a full new list and notifies observers in registration
// order, outside the lock.
func (inv *Inventory) Replace(items []model.InventoryItem) {
	next := make([]model.InventoryItem, len(items))
	copy(next, items)

	inv.mu.Lock()
	inv.items = next
	observers := make([]observerEntry, len(inv.observers))
	copy(observers, inv.observers)
	inv.mu.Unlock()

	for _, o := range observers {
		snapshot := make([]model.InventoryItem, len(next))
		copy(snapshot, next)
		o.fn(snapshot)
	}
}

// Items returns a copy of the current list.
func (inv *Inventory) Items() []model.InventoryItem {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make([]model.InventoryItem, len(inv.items))
	copy(out, inv.items)
	return out
}

// Find returns the item with id from the current list.
func (inv *Inventory) Find(id string) (model.InventoryItem, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	for _, it := range inv.items {
		if it.ID == id {
			return it, true
		}
	}
	return model.InventoryItem{}, false
}

// Len returns the number of items in the current list.
func (inv *Inventory) Len() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return len(inv.items)
}

// Observe registers fn and returns a func that unregisters it.
func (inv *Inventory) Observe(fn Observer) func() {
	inv.mu.Lock()
	inv.nextID++
	id := inv.nextID
	inv.observers = append(inv.observers, observerEntry{id: id, fn: fn})
	inv.mu.Unlock()

	return func() {
		inv.mu.Lock()
		defer inv.mu.Unlock()
		for i, o := range inv.observers {
			if o.id == id {
				inv.observers = append(inv.observers[:i], inv.observers[i+1:]...)
				return
			}
		}
	}
}
