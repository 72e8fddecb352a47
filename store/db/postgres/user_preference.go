package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/store"
)

// GetUserPreference retrieves the preference document for a user.
func (d *DB) GetUserPreference(ctx context.Context, userID int32) (*store.UserPreference, error) {
	stmt := `SELECT user_id, preferences, created_ts, updated_ts FROM user_preference WHERE user_id = $1`
	var pref store.UserPreference
	err := d.db.QueryRowContext(ctx, stmt, userID).Scan(
		&pref.UserID,
		&pref.Preferences,
		&pref.CreatedTs,
		&pref.UpdatedTs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(store.ErrNotFound, "preferences for user %d", userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user preference")
	}
	return &pref, nil
}

// UpsertUserPreference inserts or replaces the preference document.
func (d *DB) UpsertUserPreference(ctx context.Context, upsert *store.UpsertUserPreference) (*store.UserPreference, error) {
	now := time.Now().Unix()
	stmt := `
		INSERT INTO user_preference (user_id, preferences, created_ts, updated_ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			preferences = EXCLUDED.preferences,
			updated_ts = EXCLUDED.updated_ts
		RETURNING user_id, preferences, created_ts, updated_ts
	`
	var pref store.UserPreference
	err := d.db.QueryRowContext(ctx, stmt, upsert.UserID, upsert.Preferences, now, now).Scan(
		&pref.UserID,
		&pref.Preferences,
		&pref.CreatedTs,
		&pref.UpdatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert user preference")
	}
	return &pref, nil
}
