package repository

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name:         "sqlite",
	singleWriter: true,
	seedCounter:  `INSERT OR IGNORE INTO system_stats (id, total_users) VALUES (1, 0)`,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS inventory_items (
			id TEXT PRIMARY KEY,
			scope TEXT NOT NULL,
			name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit TEXT NOT NULL,
			purchase_date DATETIME NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			created_by TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_scope ON inventory_items(scope, created_at)`,
		`CREATE TABLE IF NOT EXISTS consumption_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			fruit_name TEXT NOT NULL,
			amount INTEGER NOT NULL,
			consumed_at DATETIME NOT NULL,
			household_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_consumption_user ON consumption_events(user_id)`,
		`CREATE TABLE IF NOT EXISTS waste_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			fruit_name TEXT NOT NULL,
			amount INTEGER NOT NULL,
			wasted_at DATETIME NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			household_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_waste_user ON waste_events(user_id)`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			member_id INTEGER NOT NULL,
			household_id TEXT NOT NULL DEFAULT '',
			time_zone TEXT NOT NULL DEFAULT '',
			hour_cycle TEXT NOT NULL DEFAULT '',
			disabled BOOLEAN NOT NULL DEFAULT 0,
			role TEXT NOT NULL DEFAULT '',
			loc_city TEXT NOT NULL DEFAULT '',
			loc_region TEXT NOT NULL DEFAULT '',
			loc_country TEXT NOT NULL DEFAULT '',
			loc_label TEXT NOT NULL DEFAULT '',
			joined_at DATETIME NOT NULL,
			last_active DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_household ON user_profiles(household_id)`,
		`CREATE TABLE IF NOT EXISTS households (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS system_stats (
			id INTEGER PRIMARY KEY,
			total_users INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS public_feed (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			fruit_name TEXT NOT NULL,
			amount INTEGER NOT NULL,
			member_label TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_created ON public_feed(created_at)`,
	},
}

// NewSQLiteStore opens a SQLite-backed store.
// dbPath is the path to the SQLite database file (e.g., "./data/fruition.db").
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store, err := newSQLStore(db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return store, nil
}
