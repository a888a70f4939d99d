package model

import "time"

// Feed event types.
const (
	FeedConsumed = "consumed"
	FeedWaste    = "waste"
)

// FeedEvent is an anonymized public broadcast. It never carries a name or
// user id; the member is reduced to a sequence label.
type FeedEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	FruitName   string    `json:"fruit_name"`
	Amount      int       `json:"amount"`
	MemberLabel string    `json:"member_label"`
	Location    string    `json:"location,omitempty"`
	Icon        string    `json:"icon"`
	Timestamp   time.Time `json:"timestamp"`
}
