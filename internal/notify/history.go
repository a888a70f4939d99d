package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"fruition-api/internal/cache"
	"fruition-api/internal/model"
	"fruition-api/pkg/clock"
	"fruition-api/pkg/uid"
)

// DefaultHistoryLimit is the number of notifications kept per user.
const DefaultHistoryLimit = 50

// ErrNotificationNotFound is returned by MarkRead for an unknown id.
var ErrNotificationNotFound = errors.New("notification not found")

// History is the bounded, newest-first notification list of each user,
// persisted as JSON in the KV store.
type History struct {
	kv    cache.Cache
	clock clock.Clock
	limit int

	// mu serializes read-modify-write cycles on the stored list.
	mu sync.Mutex
}

// NewHistory creates a history keeping at most limit entries per user.
func NewHistory(kv cache.Cache, clk clock.Clock, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{kv: kv, clock: clk, limit: limit}
}

func (h *History) load(ctx context.Context, userID string) ([]model.Notification, error) {
	data, err := h.kv.Get(ctx, historyKey(userID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return []model.Notification{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read notification history: %w", err)
	}
	var list []model.Notification
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode notification history: %w", err)
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

func (h *History) save(ctx context.Context, userID string, list []model.Notification) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	if err := h.kv.Set(ctx, historyKey(userID), data, 0); err != nil {
		return fmt.Errorf("failed to write notification history: %w", err)
	}
	return nil
}

// Add prepends a new unread notification and trims the list.
func (h *History) Add(ctx context.Context, userID, title, body, kind, dedupKey string) (model.Notification, error) {
	n := model.Notification{
		ID:        uid.New(),
		Title:     title,
		Body:      body,
		Type:      kind,
		Timestamp: h.clock.Now(),
		DedupKey:  dedupKey,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	list, err := h.load(ctx, userID)
	if err != nil {
		return model.Notification{}, err
	}
	list = append([]model.Notification{n}, list...)
	if len(list) > h.limit {
		list = list[:h.limit]
	}
	return n, h.save(ctx, userID, list)
}

// List returns the history, newest first.
func (h *History) List(ctx context.Context, userID string) ([]model.Notification, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(ctx, userID)
}

// UnreadCount returns the number of unread notifications.
func (h *History) UnreadCount(ctx context.Context, userID string) (int, error) {
	list, err := h.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, note := range list {
		if !note.Read {
			n++
		}
	}
	return n, nil
}

// MarkRead marks one notification as read.
func (h *History) MarkRead(ctx context.Context, userID, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	list, err := h.load(ctx, userID)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			return h.save(ctx, userID, list)
		}
	}
	return ErrNotificationNotFound
}

// MarkAllRead marks every notification as read.
func (h *History) MarkAllRead(ctx context.Context, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	list, err := h.load(ctx, userID)
	if err != nil {
		return err
	}
	for i := range list {
		list[i].Read = true
	}
	return h.save(ctx, userID, list)
}

// Clear removes every notification.
func (h *History) Clear(ctx context.Context, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kv.Delete(ctx, historyKey(userID))
}
