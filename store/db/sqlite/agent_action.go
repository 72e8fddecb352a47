package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/store"
)

const agentActionFields = `id, uid, user_id, type, description, status, requires_approval, reasoning, proposed_changes, conflict_uid, created_ts, executed_ts, user_feedback`

// CreateAgentAction inserts a new agent action in its initial status.
func (d *DB) CreateAgentAction(ctx context.Context, create *store.AgentAction) (*store.AgentAction, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	if create.Status == "" {
		create.Status = store.ActionPending
	}
	stmt := `
		INSERT INTO agent_action (uid, user_id, type, description, status, requires_approval, reasoning, proposed_changes, conflict_uid, created_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + agentActionFields
	row := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.UserID,
		create.Type,
		create.Description,
		create.Status,
		create.RequiresApproval,
		create.Reasoning,
		create.ProposedChanges,
		create.ConflictUID,
		create.CreatedTs,
	)
	action, err := scanAgentAction(row)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create agent action")
	}
	return action, nil
}

// GetAgentAction retrieves an action by its UID.
func (d *DB) GetAgentAction(ctx context.Context, uid string) (*store.AgentAction, error) {
	stmt := `SELECT ` + agentActionFields + ` FROM agent_action WHERE uid = ?`
	action, err := scanAgentAction(d.db.QueryRowContext(ctx, stmt, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(store.ErrNotFound, "agent action %s", uid)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get agent action")
	}
	return action, nil
}

// ListAgentActions lists actions matching the find conditions.
func (d *DB) ListAgentActions(ctx context.Context, find *store.FindAgentAction) ([]*store.AgentAction, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}
	if find.Status != nil {
		where, args = append(where, "status = ?"), append(args, *find.Status)
	}
	if find.ConflictUID != nil {
		where, args = append(where, "conflict_uid = ?"), append(args, *find.ConflictUID)
	}

	query := `SELECT ` + agentActionFields + ` FROM agent_action WHERE ` + joinAnd(where) + ` ORDER BY created_ts DESC`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list agent actions")
	}
	defer rows.Close()

	var actions []*store.AgentAction
	for rows.Next() {
		action, err := scanAgentAction(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan agent action")
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate agent actions")
	}
	return actions, nil
}

// TransitionAgentAction performs the compare-and-swap status update. The
// row is only touched while it still carries the expected From status; a
// mismatch returns store.ErrStatusMismatch so the caller can re-read and
// classify the race.
func (d *DB) TransitionAgentAction(ctx context.Context, transition *store.TransitionAgentAction) (*store.AgentAction, error) {
	stmt := `
		UPDATE agent_action
		SET status = ?,
			user_feedback = COALESCE(?, user_feedback),
			executed_ts = COALESCE(?, executed_ts)
		WHERE uid = ? AND status = ?
		RETURNING ` + agentActionFields
	row := d.db.QueryRowContext(ctx, stmt,
		transition.To,
		transition.UserFeedback,
		transition.ExecutedTs,
		transition.UID,
		transition.From,
	)
	action, err := scanAgentAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(store.ErrStatusMismatch, "agent action %s: expected status %q", transition.UID, transition.From)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to transition agent action")
	}
	return action, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgentAction(r rowScanner) (*store.AgentAction, error) {
	var action store.AgentAction
	var executedTs sql.NullInt64
	var feedback sql.NullString
	if err := r.Scan(
		&action.ID,
		&action.UID,
		&action.UserID,
		&action.Type,
		&action.Description,
		&action.Status,
		&action.RequiresApproval,
		&action.Reasoning,
		&action.ProposedChanges,
		&action.ConflictUID,
		&action.CreatedTs,
		&executedTs,
		&feedback,
	); err != nil {
		return nil, err
	}
	if executedTs.Valid {
		action.ExecutedTs = &executedTs.Int64
	}
	if feedback.Valid {
		action.UserFeedback = &feedback.String
	}
	return &action, nil
}

func joinAnd(where []string) string {
	out := where[0]
	for _, w := range where[1:] {
		out += " AND " + w
	}
	return out
}
