package database

import (
	"context"
	"fmt"

	nuts "github.com/vaudience/go-nuts"
)

// The schema sticks to SQL both Postgres and SQLite accept.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS entries (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		api_token  TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entry_devices (
		entry_id        TEXT NOT NULL,
		id              TEXT NOT NULL,
		name            TEXT NOT NULL,
		meter_type      TEXT NOT NULL,
		meter_number    TEXT NOT NULL DEFAULT '',
		folder_path     TEXT NOT NULL DEFAULT '',
		last_updated_at TIMESTAMP NULL,
		PRIMARY KEY (entry_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entry_devices_entry ON entry_devices (entry_id)`,
}

// Migrate creates missing tables
func Migrate(ctx context.Context, db DB) error {
	for _, stmt := range schema {
		if _, err := db.GetDB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error applying schema: %w", err)
		}
	}
	nuts.L.Debugf("[Database] Schema ready (%s)", db.Driver())
	return nil
}
