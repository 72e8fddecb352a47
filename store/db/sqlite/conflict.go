package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/store"
)

const conflictFields = `id, uid, user_id, type, severity, description, event_ids, window_start_ts, window_end_ts, status, detected_ts`

// UpsertConflict inserts or refreshes a detected conflict keyed by its
// stable UID. Re-detection updates content without resurrecting a conflict
// the user already resolved or dismissed.
func (d *DB) UpsertConflict(ctx context.Context, upsert *store.SchedulingConflict) (*store.SchedulingConflict, error) {
	if upsert.DetectedTs == 0 {
		upsert.DetectedTs = time.Now().Unix()
	}
	if upsert.Status == "" {
		upsert.Status = store.ConflictOpen
	}
	stmt := `
		INSERT INTO scheduling_conflict (uid, user_id, type, severity, description, event_ids, window_start_ts, window_end_ts, status, detected_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uid) DO UPDATE SET
			severity = excluded.severity,
			description = excluded.description,
			event_ids = excluded.event_ids,
			window_start_ts = excluded.window_start_ts,
			window_end_ts = excluded.window_end_ts,
			detected_ts = excluded.detected_ts
		RETURNING ` + conflictFields
	row := d.db.QueryRowContext(ctx, stmt,
		upsert.UID,
		upsert.UserID,
		upsert.Type,
		upsert.Severity,
		upsert.Description,
		upsert.EventIDs,
		upsert.WindowStartTs,
		upsert.WindowEndTs,
		upsert.Status,
		upsert.DetectedTs,
	)
	conflict, err := scanConflict(row)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert conflict")
	}
	return conflict, nil
}

// GetConflict retrieves a conflict by its stable UID.
func (d *DB) GetConflict(ctx context.Context, uid string) (*store.SchedulingConflict, error) {
	stmt := `SELECT ` + conflictFields + ` FROM scheduling_conflict WHERE uid = ?`
	conflict, err := scanConflict(d.db.QueryRowContext(ctx, stmt, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(store.ErrNotFound, "conflict %s", uid)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get conflict")
	}
	return conflict, nil
}

// ListConflicts lists conflicts matching the find conditions.
func (d *DB) ListConflicts(ctx context.Context, find *store.FindConflict) ([]*store.SchedulingConflict, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}
	if find.Status != nil {
		where, args = append(where, "status = ?"), append(args, *find.Status)
	}
	if find.WindowStartTs != nil {
		where, args = append(where, "window_end_ts > ?"), append(args, *find.WindowStartTs)
	}
	if find.WindowEndTs != nil {
		where, args = append(where, "window_start_ts < ?"), append(args, *find.WindowEndTs)
	}

	query := `SELECT ` + conflictFields + ` FROM scheduling_conflict WHERE ` + joinAnd(where) + ` ORDER BY window_start_ts ASC`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conflicts")
	}
	defer rows.Close()

	var conflicts []*store.SchedulingConflict
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan conflict")
		}
		conflicts = append(conflicts, conflict)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate conflicts")
	}
	return conflicts, nil
}

func scanConflict(r rowScanner) (*store.SchedulingConflict, error) {
	var c store.SchedulingConflict
	if err := r.Scan(
		&c.ID,
		&c.UID,
		&c.UserID,
		&c.Type,
		&c.Severity,
		&c.Description,
		&c.EventIDs,
		&c.WindowStartTs,
		&c.WindowEndTs,
		&c.Status,
		&c.DetectedTs,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
