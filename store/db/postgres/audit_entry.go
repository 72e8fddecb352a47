package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/store"
)

const auditEntryFields = `id, uid, user_id, kind, action, detail, confidence, outcome, created_ts`

// CreateAuditEntry appends one decision record.
func (d *DB) CreateAuditEntry(ctx context.Context, create *store.AuditEntry) (*store.AuditEntry, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	stmt := `
		INSERT INTO audit_entry (uid, user_id, kind, action, detail, confidence, outcome, created_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
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
	where, args := []string{"TRUE"}, []any{}
	if find.UserID != nil {
		args = append(args, *find.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if find.Kind != nil {
		args = append(args, *find.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}

	query := `SELECT ` + auditEntryFields + ` FROM audit_entry WHERE ` + joinAnd(where) + ` ORDER BY created_ts DESC`
	if find.Limit != nil {
		args = append(args, *find.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if find.Offset != nil {
			args = append(args, *find.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
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
