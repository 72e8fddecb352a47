package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/store"
)

// GetSystemSetting retrieves an instance-wide setting by name.
func (d *DB) GetSystemSetting(ctx context.Context, name string) (*store.SystemSetting, error) {
	stmt := `SELECT name, value FROM system_setting WHERE name = $1`
	var setting store.SystemSetting
	err := d.db.QueryRowContext(ctx, stmt, name).Scan(&setting.Name, &setting.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(store.ErrNotFound, "system setting %s", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get system setting")
	}
	return &setting, nil
}

// UpsertSystemSetting inserts or replaces an instance-wide setting.
func (d *DB) UpsertSystemSetting(ctx context.Context, upsert *store.SystemSetting) (*store.SystemSetting, error) {
	stmt := `
		INSERT INTO system_setting (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET
			value = EXCLUDED.value
		RETURNING name, value
	`
	var setting store.SystemSetting
	err := d.db.QueryRowContext(ctx, stmt, upsert.Name, upsert.Value).Scan(&setting.Name, &setting.Value)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert system setting")
	}
	return &setting, nil
}
