package model

import "time"

// StreamTicket is the short-lived credential behind a stream token. It
// carries the identity for clients that cannot set request headers.
type StreamTicket struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Identity returns the identity the ticket was issued for.
func (t StreamTicket) Identity() Identity {
	return Identity{UserID: t.UserID, Email: t.Email, DisplayName: t.DisplayName}
}
