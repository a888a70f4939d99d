package model

import "time"

// ItemStatus tells whether an inventory item has been acquired yet.
type ItemStatus string

const (
	StatusActive  ItemStatus = "Active"
	StatusPlanned ItemStatus = "Planned"
)

// Freshness is the category derived from days remaining.
type Freshness string

const (
	FreshnessPeak    Freshness = "Peak"
	FreshnessGood    Freshness = "Good"
	FreshnessRisk    Freshness = "Risk"
	FreshnessExpired Freshness = "Expired"
)

// DefaultUnit is used when an item is added without a unit.
const DefaultUnit = "Pieces"

// InventoryItem is a single perishable entry in a scoped inventory.
// DaysRemaining and Freshness are derived on every observation and are
// never persisted.
type InventoryItem struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Quantity     int        `json:"quantity"`
	Unit         string     `json:"unit"`
	PurchaseDate time.Time  `json:"purchase_date"`
	Status       ItemStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CreatedBy    string     `json:"created_by"`

	DaysRemaining int       `json:"days_remaining"`
	Freshness     Freshness `json:"freshness"`
}

// StartDate is the instant decay is measured from: the purchase date, or
// the creation time for records written without one.
func (i InventoryItem) StartDate() time.Time {
	if i.PurchaseDate.IsZero() {
		return i.CreatedAt
	}
	return i.PurchaseDate
}

// NewItem carries the caller-supplied fields of an add operation.
type NewItem struct {
	Name         string
	Quantity     int
	Unit         string
	PurchaseDate time.Time
}
