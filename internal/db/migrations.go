package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/marcus/morningshift/internal/logging"
)

// Migration is one forward schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "presets and their exercises",
		SQL: `
CREATE TABLE presets (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    work_seconds   INTEGER NOT NULL CHECK (work_seconds > 0),
    break_seconds  INTEGER NOT NULL CHECK (break_seconds >= 0),
    cycles         INTEGER NOT NULL CHECK (cycles >= 1),
    updated_at     DATETIME NOT NULL
);

CREATE TABLE preset_exercises (
    preset_id    TEXT NOT NULL REFERENCES presets(id) ON DELETE CASCADE,
    position     INTEGER NOT NULL,
    name         TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (preset_id, position)
);`,
	},
	{
		Version:     2,
		Description: "remember which file a preset was imported from",
		SQL:         `ALTER TABLE presets ADD COLUMN imported_from TEXT NOT NULL DEFAULT '';`,
	},
}

var errNilDB = errors.New("db: nil connection")

// Migrate applies every migration newer than the recorded schema version,
// each in its own transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errNilDB
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at DATETIME)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}

	log := logging.Component("db")
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
		log.Infof("applied migration %d: %s", m.Version, m.Description)
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply migration %d: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, m.Version); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// CurrentVersion returns the highest applied migration, 0 when none are.
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	if db == nil {
		return 0, errNilDB
	}
	var version int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("query schema_version: %w", err)
	}
	return version, nil
}
