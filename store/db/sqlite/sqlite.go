package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/clearday/clearday/internal/profile"
	"github.com/clearday/clearday/store"
)

// SQLite is supported on a best-effort basis for development, demos and
// single-user instances. Production deployments should use postgres.

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database named by the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// WAL journal mode avoids most locking issues for our single-writer
	// usage; busy_timeout covers the rest. With the modernc.org/sqlite
	// driver each pragma is passed as a `_pragma=` DSN option.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// A single connection is optimal for SQLite with WAL.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

var migrationStmts = []string{
	`CREATE TABLE IF NOT EXISTS agent_action (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		requires_approval INTEGER NOT NULL DEFAULT 1,
		reasoning TEXT NOT NULL DEFAULT '',
		proposed_changes TEXT NOT NULL DEFAULT '{}',
		conflict_uid TEXT NOT NULL DEFAULT '',
		created_ts BIGINT NOT NULL,
		executed_ts BIGINT,
		user_feedback TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_action_user_status ON agent_action (user_id, status)`,
	`CREATE TABLE IF NOT EXISTS scheduling_conflict (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		event_ids TEXT NOT NULL DEFAULT '[]',
		window_start_ts BIGINT NOT NULL,
		window_end_ts BIGINT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		detected_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduling_conflict_user_window ON scheduling_conflict (user_id, window_start_ts)`,
	`CREATE TABLE IF NOT EXISTS audit_entry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		action TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '{}',
		confidence REAL NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL DEFAULT '',
		created_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entry_user ON audit_entry (user_id, created_ts)`,
	`CREATE TABLE IF NOT EXISTS user_preference (
		user_id INTEGER PRIMARY KEY,
		preferences TEXT NOT NULL DEFAULT '{}',
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS system_setting (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate creates the schema when missing.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrationStmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to run migration statement")
		}
	}
	return nil
}
