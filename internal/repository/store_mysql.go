package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name:        "mysql",
	seedCounter: `INSERT IGNORE INTO system_stats (id, total_users) VALUES (1, 0)`,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS inventory_items (
			id VARCHAR(64) PRIMARY KEY,
			scope VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			quantity INT NOT NULL,
			unit VARCHAR(64) NOT NULL,
			purchase_date DATETIME(6) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			created_by VARCHAR(128) NOT NULL DEFAULT '',
			INDEX idx_inventory_scope (scope, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS consumption_events (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(128) NOT NULL,
			fruit_name VARCHAR(255) NOT NULL,
			amount INT NOT NULL,
			consumed_at DATETIME(6) NOT NULL,
			household_id VARCHAR(64) NOT NULL DEFAULT '',
			INDEX idx_consumption_user (user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS waste_events (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(128) NOT NULL,
			fruit_name VARCHAR(255) NOT NULL,
			amount INT NOT NULL,
			wasted_at DATETIME(6) NOT NULL,
			reason VARCHAR(255) NOT NULL DEFAULT '',
			household_id VARCHAR(64) NOT NULL DEFAULT '',
			INDEX idx_waste_user (user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id VARCHAR(128) PRIMARY KEY,
			email VARCHAR(255) NOT NULL DEFAULT '',
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			member_id BIGINT NOT NULL,
			household_id VARCHAR(64) NOT NULL DEFAULT '',
			time_zone VARCHAR(64) NOT NULL DEFAULT '',
			hour_cycle VARCHAR(8) NOT NULL DEFAULT '',
			disabled BOOLEAN NOT NULL DEFAULT FALSE,
			role VARCHAR(32) NOT NULL DEFAULT '',
			loc_city VARCHAR(128) NOT NULL DEFAULT '',
			loc_region VARCHAR(128) NOT NULL DEFAULT '',
			loc_country VARCHAR(128) NOT NULL DEFAULT '',
			loc_label VARCHAR(255) NOT NULL DEFAULT '',
			joined_at DATETIME(6) NOT NULL,
			last_active DATETIME(6) NULL,
			INDEX idx_profiles_household (household_id)
		)`,
		`CREATE TABLE IF NOT EXISTS households (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_by VARCHAR(128) NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS system_stats (
			id INT PRIMARY KEY,
			total_users BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS public_feed (
			id VARCHAR(64) PRIMARY KEY,
			type VARCHAR(16) NOT NULL,
			fruit_name VARCHAR(255) NOT NULL,
			amount INT NOT NULL,
			member_label VARCHAR(64) NOT NULL,
			location VARCHAR(255) NOT NULL DEFAULT '',
			icon VARCHAR(16) NOT NULL DEFAULT '',
			created_at DATETIME(6) NOT NULL,
			INDEX idx_feed_created (created_at)
		)`,
	},
}

// NewMySQLStore opens a MySQL-backed store. dsn is a go-sql-driver DSN
// such as "user:pass@tcp(host:3306)/fruition"; time parsing is forced on.
func NewMySQLStore(dsn string) (*SQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store, err := newSQLStore(db, mysqlDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[MySQLStore] Initialized (%s@%s/%s)", cfg.User, cfg.Addr, cfg.DBName)
	return store, nil
}
