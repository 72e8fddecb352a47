// Package store provides database access to the engine-owned records:
// agent actions, detected conflicts, audit entries and user preferences.
package store

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/clearday/clearday/internal/profile"
	"github.com/clearday/clearday/internal/version"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate brings the schema up to date and stamps the schema version.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.driver.Migrate(ctx); err != nil {
		return err
	}
	return s.stampSchemaVersion(ctx)
}

// stampSchemaVersion records the binary version that last migrated the
// schema. The stamp never moves backwards: a rollback to an older binary
// keeps the newer version visible.
func (s *Store) stampSchemaVersion(ctx context.Context) error {
	current := s.profile.Version
	existing, err := s.driver.GetSystemSetting(ctx, SystemSettingSchemaVersionName)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "failed to read schema version")
	}
	if existing != nil && !version.IsVersionGreaterOrEqualThan(current, existing.Value) {
		slog.Warn("database schema was written by a newer version",
			"schemaVersion", existing.Value, "binaryVersion", current)
		return nil
	}
	_, err = s.driver.UpsertSystemSetting(ctx, &SystemSetting{
		Name:  SystemSettingSchemaVersionName,
		Value: current,
	})
	return errors.Wrap(err, "failed to stamp schema version")
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateAgentAction(ctx context.Context, create *AgentAction) (*AgentAction, error) {
	return s.driver.CreateAgentAction(ctx, create)
}

func (s *Store) GetAgentAction(ctx context.Context, uid string) (*AgentAction, error) {
	return s.driver.GetAgentAction(ctx, uid)
}

func (s *Store) ListAgentActions(ctx context.Context, find *FindAgentAction) ([]*AgentAction, error) {
	return s.driver.ListAgentActions(ctx, find)
}

func (s *Store) TransitionAgentAction(ctx context.Context, transition *TransitionAgentAction) (*AgentAction, error) {
	return s.driver.TransitionAgentAction(ctx, transition)
}

func (s *Store) UpsertConflict(ctx context.Context, upsert *SchedulingConflict) (*SchedulingConflict, error) {
	return s.driver.UpsertConflict(ctx, upsert)
}

func (s *Store) GetConflict(ctx context.Context, uid string) (*SchedulingConflict, error) {
	return s.driver.GetConflict(ctx, uid)
}

func (s *Store) ListConflicts(ctx context.Context, find *FindConflict) ([]*SchedulingConflict, error) {
	return s.driver.ListConflicts(ctx, find)
}

func (s *Store) CreateAuditEntry(ctx context.Context, create *AuditEntry) (*AuditEntry, error) {
	return s.driver.CreateAuditEntry(ctx, create)
}

func (s *Store) ListAuditEntries(ctx context.Context, find *FindAuditEntry) ([]*AuditEntry, error) {
	return s.driver.ListAuditEntries(ctx, find)
}

func (s *Store) GetUserPreference(ctx context.Context, userID int32) (*UserPreference, error) {
	return s.driver.GetUserPreference(ctx, userID)
}

func (s *Store) UpsertUserPreference(ctx context.Context, upsert *UpsertUserPreference) (*UserPreference, error) {
	return s.driver.UpsertUserPreference(ctx, upsert)
}
