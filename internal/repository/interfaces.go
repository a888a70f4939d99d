package repository

import (
	"context"
	"time"

	"fruition-api/internal/model"
)

// InventoryRepository stores inventory items under a scope path
// ("users/{id}/inventory" or "households/{id}/inventory").
type InventoryRepository interface {
	// ListInventory returns every item in scope, newest first.
	ListInventory(ctx context.Context, scope string) ([]model.InventoryItem, error)

	// InsertInventoryItem stores a new item. Derived fields are ignored.
	InsertInventoryItem(ctx context.Context, scope string, item *model.InventoryItem) error

	// UpdateQuantity sets the quantity of an item if its stored quantity is
	// still expected. Returns model.ErrConflict otherwise.
	UpdateQuantity(ctx context.Context, scope, id string, expected, quantity int) error

	// DeleteIfQuantity removes an item if its stored quantity is still
	// expected. Returns model.ErrConflict otherwise.
	DeleteIfQuantity(ctx context.Context, scope, id string, expected int) error

	// DeleteInventoryItem removes an item unconditionally.
	DeleteInventoryItem(ctx context.Context, scope, id string) error
}

// LedgerRepository stores the append-only consumption and waste history.
type LedgerRepository interface {
	AppendConsumption(ctx context.Context, event *model.ConsumptionEvent) error
	AppendWaste(ctx context.Context, event *model.WasteEvent) error
	ListConsumption(ctx context.Context, userID string) ([]model.ConsumptionEvent, error)
	ListWaste(ctx context.Context, userID string) ([]model.WasteEvent, error)
}

// ProfileRepository stores user profiles and the global member counter.
type ProfileRepository interface {
	// GetProfile returns model.ErrNotFound when no profile exists.
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)

	// CreateProfileWithMemberID atomically increments the global counter and
	// inserts profile with the new value as its member id. Returns
	// model.ErrProfileExists if the identity already has a profile.
	CreateProfileWithMemberID(ctx context.Context, profile *model.UserProfile) error

	UpdateLocation(ctx context.Context, userID string, loc model.Location) error
	UpdateSettings(ctx context.Context, userID string, settings model.Settings) error
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
	SetHousehold(ctx context.Context, userID, householdID string) error
	SetDisabled(ctx context.Context, userID string, disabled bool) error
	OverrideMemberID(ctx context.Context, userID string, memberID int64) error

	// TotalUsers returns the current value of the global member counter.
	TotalUsers(ctx context.Context) (int64, error)
}

// HouseholdRepository stores households. Membership lives on profiles.
type HouseholdRepository interface {
	CreateHousehold(ctx context.Context, household *model.Household) error
	GetHousehold(ctx context.Context, id string) (*model.Household, error)
	ListMembers(ctx context.Context, householdID string) ([]model.UserProfile, error)
}

// FeedRepository stores anonymized public feed events.
type FeedRepository interface {
	InsertFeedEvents(ctx context.Context, events []model.FeedEvent) error
	RecentFeedEvents(ctx context.Context, limit int) ([]model.FeedEvent, error)
}

// Store is the full remote store the engine runs against.
type Store interface {
	InventoryRepository
	LedgerRepository
	ProfileRepository
	HouseholdRepository
	FeedRepository

	// GetStats returns statistics about the backing database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}
