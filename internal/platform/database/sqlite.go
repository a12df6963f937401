package database

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"monitorflow/internal/platform/config"
)

// Open connects to the sqlite database holding all dispatcher state:
// users, categories, events, webhooks, deliveries and the shared
// rate-limit/quota counters.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	// busy_timeout keeps concurrent counter upserts from failing with
	// SQLITE_BUSY under load; foreign_keys enforces ownership links.
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
