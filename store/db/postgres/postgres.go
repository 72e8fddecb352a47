package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/clearday/clearday/internal/profile"
	"github.com/clearday/clearday/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL connection using the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}
	postgresDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	return &DB{db: postgresDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

var migrationStmts = []string{
	`CREATE TABLE IF NOT EXISTS agent_action (
		id BIGSERIAL PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		requires_approval BOOLEAN NOT NULL DEFAULT TRUE,
		reasoning TEXT NOT NULL DEFAULT '',
		proposed_changes TEXT NOT NULL DEFAULT '{}',
		conflict_uid TEXT NOT NULL DEFAULT '',
		created_ts BIGINT NOT NULL,
		executed_ts BIGINT,
		user_feedback TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_action_user_status ON agent_action (user_id, status)`,
	`CREATE TABLE IF NOT EXISTS scheduling_conflict (
		id BIGSERIAL PRIMARY KEY,
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
		id BIGSERIAL PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		action TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '{}',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
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

type rowScanner interface {
	Scan(dest ...any) error
}

func joinAnd(where []string) string {
	out := where[0]
	for _, w := range where[1:] {
		out += " AND " + w
	}
	return out
}
