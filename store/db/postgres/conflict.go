package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/store"
)

const conflictFields = `id, uid, user_id, type, severity, description, event_ids, window_start_ts, window_end_ts, status, detected_ts`

// UpsertConflict inserts or refreshes a detected conflict keyed by its
// stable UID.
func (d *DB) UpsertConflict(ctx context.Context, upsert *store.SchedulingConflict) (*store.SchedulingConflict, error) {
	if upsert.DetectedTs == 0 {
		upsert.DetectedTs = time.Now().Unix()
	}
	if upsert.Status == "" {
		upsert.Status = store.ConflictOpen
	}
	stmt := `
		INSERT INTO scheduling_conflict (uid, user_id, type, severity, description, event_ids, window_start_ts, window_end_ts, status, detected_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (uid) DO UPDATE SET
			severity = EXCLUDED.severity,
			description = EXCLUDED.description,
			event_ids = EXCLUDED.event_ids,
			window_start_ts = EXCLUDED.window_start_ts,
			window_end_ts = EXCLUDED.window_end_ts,
			detected_ts = EXCLUDED.detected_ts
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
	stmt := `SELECT ` + conflictFields + ` FROM scheduling_conflict WHERE uid = $1`
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
	where, args := []string{"TRUE"}, []any{}
	if find.UserID != nil {
		args = append(args, *find.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if find.Status != nil {
		args = append(args, *find.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if find.WindowStartTs != nil {
		args = append(args, *find.WindowStartTs)
		where = append(where, fmt.Sprintf("window_end_ts > $%d", len(args)))
	}
	if find.WindowEndTs != nil {
		args = append(args, *find.WindowEndTs)
		where = append(where, fmt.Sprintf("window_start_ts < $%d", len(args)))
	}

	query := `SELECT ` + conflictFields + ` FROM scheduling_conflict WHERE ` + joinAnd(where) + ` ORDER BY window_start_ts ASC`
	if find.Limit != nil {
		args = append(args, *find.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
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
