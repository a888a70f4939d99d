package model

import "time"

// Notification types.
const (
	NotifyInfo    = "info"
	NotifyWarning = "warning"
	NotifySuccess = "success"
	NotifyDanger  = "danger"
)

// Notification is an entry of the local notification history.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	DedupKey  string    `json:"dedup_key,omitempty"`
}
