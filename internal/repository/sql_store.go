package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"fruition-api/internal/model"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name         string
	schema       []string
	seedCounter  string
	numbered     bool // $1, $2 placeholders instead of ?
	singleWriter bool // serialize all access through one connection
}

// SQLStore implements Store on top of database/sql. Queries are written
// with ? placeholders and rebound for backends that number them.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	mu      sync.RWMutex
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d}
	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// migrate creates the schema and seeds the global counter row.
func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, s.dialect.seedCounter)
	return err
}

func (s *SQLStore) q(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) writeLock() func() {
	if !s.dialect.singleWriter {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *SQLStore) readLock() func() {
	if !s.dialect.singleWriter {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// --- inventory ---

// ListInventory returns every item in scope, newest first.
func (s *SQLStore) ListInventory(ctx context.Context, scope string) ([]model.InventoryItem, error) {
	defer s.readLock()()

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, name, quantity, unit, purchase_date, status, created_at, created_by
		FROM inventory_items
		WHERE scope = ?
		ORDER BY created_at DESC, id DESC`), scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	items := make([]model.InventoryItem, 0)
	for rows.Next() {
		var it model.InventoryItem
		var status string
		if err := rows.Scan(&it.ID, &it.Name, &it.Quantity, &it.Unit, &it.PurchaseDate, &status, &it.CreatedAt, &it.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		it.Status = model.ItemStatus(status)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return items, nil
}

// InsertInventoryItem stores a new item under scope.
func (s *SQLStore) InsertInventoryItem(ctx context.Context, scope string, item *model.InventoryItem) error {
	defer s.writeLock()()

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO inventory_items (id, scope, name, quantity, unit, purchase_date, status, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		item.ID, scope, item.Name, item.Quantity, item.Unit,
		item.PurchaseDate.UTC(), string(item.Status), item.CreatedAt.UTC(), item.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to insert inventory item: %w", err)
	}
	return nil
}

// UpdateQuantity sets quantity if the stored quantity still equals expected.
func (s *SQLStore) UpdateQuantity(ctx context.Context, scope, id string, expected, quantity int) error {
	defer s.writeLock()()

	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE inventory_items SET quantity = ?
		WHERE scope = ? AND id = ? AND quantity = ?`), quantity, scope, id, expected)
	if err != nil {
		return fmt.Errorf("failed to update quantity: %w", err)
	}
	return s.expectOneRow(ctx, res, scope, id)
}

// DeleteIfQuantity removes an item if the stored quantity still equals expected.
func (s *SQLStore) DeleteIfQuantity(ctx context.Context, scope, id string, expected int) error {
	defer s.writeLock()()

	res, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM inventory_items WHERE scope = ? AND id = ? AND quantity = ?`), scope, id, expected)
	if err != nil {
		return fmt.Errorf("failed to delete inventory item: %w", err)
	}
	return s.expectOneRow(ctx, res, scope, id)
}

// DeleteInventoryItem removes an item unconditionally.
func (s *SQLStore) DeleteInventoryItem(ctx context.Context, scope, id string) error {
	defer s.writeLock()()

	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM inventory_items WHERE scope = ? AND id = ?`), scope, id)
	if err != nil {
		return fmt.Errorf("failed to delete inventory item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// expectOneRow turns a zero-row conditional write into ErrNotFound or
// ErrConflict depending on whether the item still exists.
func (s *SQLStore) expectOneRow(ctx context.Context, res sql.Result, scope, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var count int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM inventory_items WHERE scope = ? AND id = ?`), scope, id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check inventory item: %w", err)
	}
	if count == 0 {
		return model.ErrNotFound
	}
	return model.ErrConflict
}

// --- ledger ---

// AppendConsumption appends an immutable consumption record.
func (s *SQLStore) AppendConsumption(ctx context.Context, e *model.ConsumptionEvent) error {
	defer s.writeLock()()

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO consumption_events (id, user_id, fruit_name, amount, consumed_at, household_id)
		VALUES (?, ?, ?, ?, ?, ?)`),
		e.ID, e.UserID, e.FruitName, e.Amount, e.ConsumedAt.UTC(), e.HouseholdID)
	if err != nil {
		return fmt.Errorf("failed to append consumption: %w", err)
	}
	return nil
}

// AppendWaste appends an immutable waste record.
func (s *SQLStore) AppendWaste(ctx context.Context, e *model.WasteEvent) error {
	defer s.writeLock()()

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO waste_events (id, user_id, fruit_name, amount, wasted_at, reason, household_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.UserID, e.FruitName, e.Amount, e.WastedAt.UTC(), e.Reason, e.HouseholdID)
	if err != nil {
		return fmt.Errorf("failed to append waste: %w", err)
	}
	return nil
}

// ListConsumption returns the full consumption history of a user, newest first.
func (s *SQLStore) ListConsumption(ctx context.Context, userID string) ([]model.ConsumptionEvent, error) {
	defer s.readLock()()

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, fruit_name, amount, consumed_at, household_id
		FROM consumption_events WHERE user_id = ?
		ORDER BY consumed_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumption: %w", err)
	}
	defer rows.Close()

	events := make([]model.ConsumptionEvent, 0)
	for rows.Next() {
		var e model.ConsumptionEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.FruitName, &e.Amount, &e.ConsumedAt, &e.HouseholdID); err != nil {
			return nil, fmt.Errorf("failed to scan consumption: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListWaste returns the full waste history of a user, newest first.
func (s *SQLStore) ListWaste(ctx context.Context, userID string) ([]model.WasteEvent, error) {
	defer s.readLock()()

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, fruit_name, amount, wasted_at, reason, household_id
		FROM waste_events WHERE user_id = ?
		ORDER BY wasted_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waste: %w", err)
	}
	defer rows.Close()

	events := make([]model.WasteEvent, 0)
	for rows.Next() {
		var e model.WasteEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.FruitName, &e.Amount, &e.WastedAt, &e.Reason, &e.HouseholdID); err != nil {
			return nil, fmt.Errorf("failed to scan waste: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- profiles ---

const profileColumns = `user_id, email, display_name, member_id, household_id, time_zone, hour_cycle,
	disabled, role, loc_city, loc_region, loc_country, loc_label, joined_at, last_active`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*model.UserProfile, error) {
	var p model.UserProfile
	var loc model.Location
	var lastActive sql.NullTime
	err := row.Scan(&p.UserID, &p.Email, &p.DisplayName, &p.MemberID, &p.HouseholdID,
		&p.Settings.TimeZone, &p.Settings.HourCycle, &p.Disabled, &p.Role,
		&loc.City, &loc.Region, &loc.Country, &loc.Label, &p.JoinedAt, &lastActive)
	if err != nil {
		return nil, err
	}
	if loc.Label != "" || loc.City != "" || loc.Country != "" {
		p.Location = &loc
	}
	if lastActive.Valid {
		t := lastActive.Time
		p.LastActive = &t
	}
	return &p, nil
}

// GetProfile returns the profile of userID or model.ErrNotFound.
func (s *SQLStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	defer s.readLock()()

	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`), userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// CreateProfileWithMemberID bumps the global counter and inserts profile
// with the new value, all in one transaction.
func (s *SQLStore) CreateProfileWithMemberID(ctx context.Context, p *model.UserProfile) error {
	defer s.writeLock()()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM user_profiles WHERE user_id = ?`), p.UserID).Scan(&existing); err != nil {
		return fmt.Errorf("failed to check profile: %w", err)
	}
	if existing > 0 {
		return model.ErrProfileExists
	}

	if _, err := tx.ExecContext(ctx, `UPDATE system_stats SET total_users = total_users + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to increment member counter: %w", err)
	}
	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT total_users FROM system_stats WHERE id = 1`).Scan(&next); err != nil {
		return fmt.Errorf("failed to read member counter: %w", err)
	}

	var loc model.Location
	if p.Location != nil {
		loc = *p.Location
	}
	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO user_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.UserID, p.Email, p.DisplayName, next, p.HouseholdID, p.Settings.TimeZone, p.Settings.HourCycle,
		p.Disabled, p.Role, loc.City, loc.Region, loc.Country, loc.Label, p.JoinedAt.UTC(), nil)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	p.MemberID = next
	return nil
}

func (s *SQLStore) updateProfile(ctx context.Context, what, query string, args ...interface{}) error {
	defer s.writeLock()()

	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// UpdateLocation stores the coarse location of a user.
func (s *SQLStore) UpdateLocation(ctx context.Context, userID string, loc model.Location) error {
	return s.updateProfile(ctx, "location",
		`UPDATE user_profiles SET loc_city = ?, loc_region = ?, loc_country = ?, loc_label = ? WHERE user_id = ?`,
		loc.City, loc.Region, loc.Country, loc.Label, userID)
}

// UpdateSettings stores display settings of a user.
func (s *SQLStore) UpdateSettings(ctx context.Context, userID string, settings model.Settings) error {
	return s.updateProfile(ctx, "settings",
		`UPDATE user_profiles SET time_zone = ?, hour_cycle = ? WHERE user_id = ?`,
		settings.TimeZone, settings.HourCycle, userID)
}

// TouchLastActive records presence of a user at at.
func (s *SQLStore) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	return s.updateProfile(ctx, "last active",
		`UPDATE user_profiles SET last_active = ? WHERE user_id = ?`, at.UTC(), userID)
}

// SetHousehold links a user to a household; an empty id unlinks.
func (s *SQLStore) SetHousehold(ctx context.Context, userID, householdID string) error {
	return s.updateProfile(ctx, "household",
		`UPDATE user_profiles SET household_id = ? WHERE user_id = ?`, householdID, userID)
}

// SetDisabled suspends or restores an account.
func (s *SQLStore) SetDisabled(ctx context.Context, userID string, disabled bool) error {
	return s.updateProfile(ctx, "disabled flag",
		`UPDATE user_profiles SET disabled = ? WHERE user_id = ?`, disabled, userID)
}

// OverrideMemberID is the administrative member id override.
func (s *SQLStore) OverrideMemberID(ctx context.Context, userID string, memberID int64) error {
	return s.updateProfile(ctx, "member id",
		`UPDATE user_profiles SET member_id = ? WHERE user_id = ?`, memberID, userID)
}

// TotalUsers returns the global member counter.
func (s *SQLStore) TotalUsers(ctx context.Context) (int64, error) {
	defer s.readLock()()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT total_users FROM system_stats WHERE id = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read member counter: %w", err)
	}
	return n, nil
}

// --- households ---

// CreateHousehold stores a new household.
func (s *SQLStore) CreateHousehold(ctx context.Context, h *model.Household) error {
	defer s.writeLock()()

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO households (id, name, created_by, created_at) VALUES (?, ?, ?, ?)`),
		h.ID, h.Name, h.CreatedBy, h.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create household: %w", err)
	}
	return nil
}

// GetHousehold returns a household or model.ErrNotFound.
func (s *SQLStore) GetHousehold(ctx context.Context, id string) (*model.Household, error) {
	defer s.readLock()()

	var h model.Household
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, name, created_by, created_at FROM households WHERE id = ?`), id).
		Scan(&h.ID, &h.Name, &h.CreatedBy, &h.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get household: %w", err)
	}
	return &h, nil
}

// ListMembers returns the profiles linked to a household.
func (s *SQLStore) ListMembers(ctx context.Context, householdID string) ([]model.UserProfile, error) {
	defer s.readLock()()

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+profileColumns+` FROM user_profiles
		WHERE household_id = ? ORDER BY member_id`), householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list household members: %w", err)
	}
	defer rows.Close()

	members := make([]model.UserProfile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *p)
	}
	return members, rows.Err()
}

// --- public feed ---

// InsertFeedEvents stores a batch of feed events in one transaction.
func (s *SQLStore) InsertFeedEvents(ctx context.Context, events []model.FeedEvent) error {
	if len(events) == 0 {
		return nil
	}
	defer s.writeLock()()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO public_feed (id, type, fruit_name, amount, member_label, location, icon, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Type, e.FruitName, e.Amount, e.MemberLabel, e.Location, e.Icon, e.Timestamp.UTC()); err != nil {
			return fmt.Errorf("failed to insert feed event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecentFeedEvents returns the latest feed events, newest first.
func (s *SQLStore) RecentFeedEvents(ctx context.Context, limit int) ([]model.FeedEvent, error) {
	defer s.readLock()()

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, type, fruit_name, amount, member_label, location, icon, created_at
		FROM public_feed ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	defer rows.Close()

	events := make([]model.FeedEvent, 0)
	for rows.Next() {
		var e model.FeedEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.FruitName, &e.Amount, &e.MemberLabel, &e.Location, &e.Icon, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan feed event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- admin ---

// GetStats returns row counts and connection pool figures.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	defer s.readLock()()

	stats := make(map[string]interface{})
	stats["backend"] = s.dialect.name

	for _, table := range []string{"inventory_items", "consumption_events", "waste_events", "user_profiles", "households", "public_feed"} {
		var count int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, err
		}
		stats[table] = count
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT total_users FROM system_stats WHERE id = 1`).Scan(&total); err == nil {
		stats["total_users"] = total
	}

	dbStats := s.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}
	return stats, nil
}

// Close closes the database connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
