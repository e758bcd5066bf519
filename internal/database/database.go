// Package database opens the SQLite file holding the calendar events that
// conflict checks run against.
package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SchemaVersion is the goose version that creates calendar_events. A
// database migrated past it by a newer build is still readable.
const SchemaVersion int64 = 1

// Open opens the event database at path, runs pending migrations and
// checks that the calendar_events schema is in place. ":memory:" gives a
// private database for tests.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open event db %s: %w", path, err)
	}

	// Each :memory: connection is its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping event db %s: %w", path, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Version reports the goose version the event database is at.
func Version(db *sql.DB) (int64, error) {
	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate calendar_events: %w", err)
	}

	v, err := Version(db)
	if err != nil {
		return err
	}
	if v < SchemaVersion {
		return fmt.Errorf("calendar_events schema at version %d, need %d", v, SchemaVersion)
	}
	return nil
}
