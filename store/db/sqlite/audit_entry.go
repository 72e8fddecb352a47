package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/store"
)

const auditEntryFields = `id, uid, user_id, kind, action, detail, confidence, outcome, created_ts`

// CreateAuditEntry appends one decision record. The audit table is
// append-only; entries are never updated or deleted by the engine.
func (d *DB) CreateAuditEntry(ctx context.Context, create *store.AuditEntry) (*store.AuditEntry, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	stmt := `
		INSERT INTO audit_entry (uid, user_id, kind, action, detail, confidence, outcome, created_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + auditEntryFields
	row := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.UserID,
		create.Kind,
		create.Action,
		create.Detail,
		create.Confidence,
		create.Outcome,
		create.CreatedTs,
	)
	entry, err := scanAuditEntry(row)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create audit entry")
	}
	return entry, nil
}

// ListAuditEntries lists entries matching the find conditions, newest first.
func (d *DB) ListAuditEntries(ctx context.Context, find *store.FindAuditEntry) ([]*store.AuditEntry, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}
	if find.Kind != nil {
		where, args = append(where, "kind = ?"), append(args, *find.Kind)
	}

	query := `SELECT ` + auditEntryFields + ` FROM audit_entry WHERE ` + joinAnd(where) + ` ORDER BY created_ts DESC`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET ?"
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []*store.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate audit entries")
	}
	return entries, nil
}

func scanAuditEntry(r rowScanner) (*store.AuditEntry, error) {
	var e store.AuditEntry
	if err := r.Scan(
		&e.ID,
		&e.UID,
		&e.UserID,
		&e.Kind,
		&e.Action,
		&e.Detail,
		&e.Confidence,
		&e.Outcome,
		&e.CreatedTs,
	); err != nil {
		return nil, err
	}
	return &e, nil
}
