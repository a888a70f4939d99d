// Package notify raises expiry alerts from the published inventory list and
// keeps each user's notification history.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fruition-api/internal/cache"
	"fruition-api/internal/model"
	"fruition-api/internal/pubsub"
	"fruition-api/pkg/clock"
)

// Defaults for the expiry check.
const (
	DefaultCheckInterval = time.Hour
	SoonThresholdDays    = 2
	alertMarkerTTL       = 48 * time.Hour
)

// ErrInvalidPermission is returned for an unknown permission state.
var ErrInvalidPermission = errors.New("invalid permission state")

// Alert permission states.
const (
	PermissionDefault = "default"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// Config holds the shared dependencies of every watcher.
type Config struct {
	KV            cache.Cache
	History       *History
	Alerter       Alerter
	Clock         clock.Clock
	CheckInterval time.Duration

	// Broker, when set, receives every new notification on the user's
	// NotificationTopic for live in-app delivery.
	Broker pubsub.Broker
}

// Watcher runs the expiry check for one user. It is attached as an
// observer of that user's published inventory list.
type Watcher struct {
	userID        string
	kv            cache.Cache
	history       *History
	alerter       Alerter
	broker        pubsub.Broker
	clock         clock.Clock
	checkInterval time.Duration
	location      *time.Location

	// foreground reports whether the user is looking at the app; system
	// alerts are only raised when it returns false.
	foreground func() bool

	mu sync.Mutex
}

// NewWatcher creates a watcher for userID whose calendar days follow loc.
func NewWatcher(cfg Config, userID string, loc *time.Location, foreground func() bool) *Watcher {
	if loc == nil {
		loc = time.UTC
	}
	if foreground == nil {
		foreground = func() bool { return false }
	}
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Watcher{
		userID:        userID,
		kv:            cfg.KV,
		history:       cfg.History,
		alerter:       cfg.Alerter,
		broker:        cfg.Broker,
		clock:         cfg.Clock,
		checkInterval: interval,
		location:      loc,
		foreground:    foreground,
	}
}

// SetLocation changes the time zone used for calendar days.
func (w *Watcher) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	w.mu.Lock()
	w.location = loc
	w.mu.Unlock()
}

// Observe is the inventory observer. Errors are logged.
func (w *Watcher) Observe(items []model.InventoryItem) {
	if _, err := w.Check(context.Background(), items); err != nil {
		log.Printf("[Watcher] Expiry check for %s failed: %v", w.userID, err)
	}
}

// Check runs one expiry pass over items and returns the notifications it
// raised. It does nothing for an empty list or when the previous pass ran
// less than the check interval ago.
func (w *Watcher) Check(ctx context.Context, items []model.InventoryItem) ([]model.Notification, error) {
	if len(items) == 0 {
		return nil, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	due, err := w.due(ctx, now)
	if err != nil || !due {
		return nil, err
	}

	day := now.In(w.location).Format("2006-01-02")
	var raised []model.Notification
	expired := 0

	for _, it := range items {
		if it.Status == model.StatusPlanned || it.DaysRemaining > SoonThresholdDays {
			continue
		}
		key := alertKey(w.userID, it.ID, day)
		claimed, err := w.kv.SetIfAbsent(ctx, key, []byte("true"), alertMarkerTTL)
		if err != nil {
			return raised, fmt.Errorf("failed to claim alert marker: %w", err)
		}
		if !claimed {
			continue
		}

		if it.DaysRemaining <= 0 {
			expired++
			continue
		}
		n, err := w.raise(ctx, "Eat Soon! ⏳",
			fmt.Sprintf("Your %s expires in %d days.", it.Name, it.DaysRemaining),
			model.NotifyWarning, key)
		if err != nil {
			_ = w.kv.Delete(ctx, key)
			return raised, err
		}
		raised = append(raised, n)
	}

	if expired > 0 {
		n, err := w.raise(ctx, "Pantry Alert 🚨",
			fmt.Sprintf("%d items have expired. Check your inventory.", expired),
			model.NotifyDanger, "")
		if err != nil {
			return raised, err
		}
		raised = append(raised, n)
	}

	if err := w.kv.Set(ctx, lastCheckKey(w.userID), []byte(now.UTC().Format(time.RFC3339Nano)), 0); err != nil {
		return raised, fmt.Errorf("failed to write last check: %w", err)
	}
	return raised, nil
}

// due reports whether the check interval has passed since the last pass.
func (w *Watcher) due(ctx context.Context, now time.Time) (bool, error) {
	data, err := w.kv.Get(ctx, lastCheckKey(w.userID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read last check: %w", err)
	}
	last, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		return true, nil
	}
	return now.Sub(last) >= w.checkInterval, nil
}

// raise records a notification and, when permitted and backgrounded,
// forwards it to the system alerter. Alerter failures are logged only.
func (w *Watcher) raise(ctx context.Context, title, body, kind, dedupKey string) (model.Notification, error) {
	n, err := w.history.Add(ctx, w.userID, title, body, kind, dedupKey)
	if err != nil {
		return model.Notification{}, err
	}

	if w.broker != nil {
		if data, err := json.Marshal(n); err == nil {
			if err := w.broker.Publish(ctx, NotificationTopic(w.userID), data); err != nil {
				log.Printf("[Watcher] In-app delivery for %s failed: %v", w.userID, err)
			}
		}
	}

	if w.alerter == nil || w.foreground() {
		return n, nil
	}
	perm, err := Permission(ctx, w.kv, w.userID)
	if err != nil {
		log.Printf("[Watcher] Permission lookup for %s failed: %v", w.userID, err)
		return n, nil
	}
	if perm != PermissionGranted {
		return n, nil
	}
	if err := w.alerter.Alert(ctx, w.userID, n); err != nil {
		log.Printf("[Watcher] System alert for %s failed: %v", w.userID, err)
	}
	return n, nil
}

// Permission returns the stored alert permission of userID.
func Permission(ctx context.Context, kv cache.Cache, userID string) (string, error) {
	data, err := kv.Get(ctx, permissionKey(userID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return PermissionDefault, nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetPermission stores the alert permission of userID.
func SetPermission(ctx context.Context, kv cache.Cache, userID, state string) error {
	switch state {
	case PermissionDefault, PermissionGranted, PermissionDenied:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPermission, state)
	}
	return kv.Set(ctx, permissionKey(userID), []byte(state), 0)
}
