package model

import "time"

// DefaultWasteReason is recorded when a waste operation gives no reason.
const DefaultWasteReason = "Expired"

// ConsumptionEvent is an immutable record of fruit eaten by a user.
type ConsumptionEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	FruitName   string    `json:"fruit_name"`
	Amount      int       `json:"amount"`
	ConsumedAt  time.Time `json:"consumed_at"`
	HouseholdID string    `json:"household_id,omitempty"`
}

// WasteEvent is an immutable record of fruit thrown away by a user.
type WasteEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	FruitName   string    `json:"fruit_name"`
	Amount      int       `json:"amount"`
	WastedAt    time.Time `json:"wasted_at"`
	Reason      string    `json:"reason,omitempty"`
	HouseholdID string    `json:"household_id,omitempty"`
}

// Stats is the full, unfiltered ledger of one identity.
type Stats struct {
	Consumed []ConsumptionEvent `json:"consumed"`
	Wasted   []WasteEvent       `json:"wasted"`
}
