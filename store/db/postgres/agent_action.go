package postgres

import (
	"context"
	"database/sql"
	"fmt"
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
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
	stmt := `SELECT ` + agentActionFields + ` FROM agent_action WHERE uid = $1`
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
	where, args := []string{"TRUE"}, []any{}
	if find.UserID != nil {
		args = append(args, *find.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if find.Status != nil {
		args = append(args, *find.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if find.ConflictUID != nil {
		args = append(args, *find.ConflictUID)
		where = append(where, fmt.Sprintf("conflict_uid = $%d", len(args)))
	}

	query := `SELECT ` + agentActionFields + ` FROM agent_action WHERE ` + joinAnd(where) + ` ORDER BY created_ts DESC`
	if find.Limit != nil {
		args = append(args, *find.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
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

// TransitionAgentAction performs the compare-and-swap status update.
func (d *DB) TransitionAgentAction(ctx context.Context, transition *store.TransitionAgentAction) (*store.AgentAction, error) {
	stmt := `
		UPDATE agent_action
		SET status = $1,
			user_feedback = COALESCE($2, user_feedback),
			executed_ts = COALESCE($3, executed_ts)
		WHERE uid = $4 AND status = $5
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
