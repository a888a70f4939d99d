// Package freshness derives days remaining and a freshness category for an
// inventory item. Everything here is pure: callers pass "now".
package freshness

import (
	"time"

	"fruition-api/internal/fruit"
	"fruition-api/internal/model"
)

// PlannedDaysRemaining is reported for items that have not been acquired yet.
const PlannedDaysRemaining = 7

const day = 24 * time.Hour

// ShelfLife resolves a name to nominal days until spoilage.
type ShelfLife interface {
	ShelfLifeDays(name string) int
}

var _ ShelfLife = (*fruit.Table)(nil)

// Result is the derived state of one item at one instant.
type Result struct {
	DaysRemaining int
	Freshness     model.Freshness
}

// Derive computes the freshness of an item named name, purchased at
// purchaseDate, as observed at now.
func Derive(table ShelfLife, name string, purchaseDate time.Time, status model.ItemStatus, now time.Time) Result {
	if status == model.StatusPlanned {
		return Result{DaysRemaining: PlannedDaysRemaining, Freshness: Category(PlannedDaysRemaining)}
	}

	// A purchase date ahead of now (an Active item whose date moved across
	// a zone change) counts as bought today, never as extra shelf life.
	daysPassed := int(now.Sub(purchaseDate) / day)
	if daysPassed < 0 {
		daysPassed = 0
	}

	remaining := table.ShelfLifeDays(name) - daysPassed
	if remaining < 0 {
		remaining = 0
	}
	return Result{DaysRemaining: remaining, Freshness: Category(remaining)}
}

// Category maps days remaining to a freshness category. The Expired check
// must run before Risk: both bands include 1.
func Category(daysRemaining int) model.Freshness {
	switch {
	case daysRemaining <= 1:
		return model.FreshnessExpired
	case daysRemaining <= 3:
		return model.FreshnessRisk
	case daysRemaining <= 5:
		return model.FreshnessGood
	default:
		return model.FreshnessPeak
	}
}

// Apply returns item with its derived fields filled in for now.
func Apply(table ShelfLife, item model.InventoryItem, now time.Time) model.InventoryItem {
	r := Derive(table, item.Name, item.StartDate(), item.Status, now)
	item.DaysRemaining = r.DaysRemaining
	item.Freshness = r.Freshness
	return item
}
