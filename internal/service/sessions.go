package service

import (
	"context"
	"fmt"

	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
)

// Sessions manages stored session records and their filter rules.
type Sessions struct {
	sessions model.SessionStore
	filters  model.FilterStore
	monitors *Monitors
	logger   *logger.Logger
}

func NewSessions(sessions model.SessionStore, filters model.FilterStore, monitors *Monitors, logger *logger.Logger) *Sessions {
	return &Sessions{
		sessions: sessions,
		filters:  filters,
		monitors: monitors,
		logger:   logger,
	}
}

// List returns the user's stored sessions. A user with no sessions gets
// ErrNotFound rather than an empty list.
func (s *Sessions) List(ctx context.Context, userID int64) ([]model.SessionRecord, error) {
	records, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no sessions stored: %w", model.ErrNotFound)
	}
	return records, nil
}

// Delete removes a stored session. A running monitor for the session is
// stopped first; its filter rules are removed with it.
func (s *Sessions) Delete(ctx context.Context, userID int64, sessionName string) error {
	if s.monitors.Stop(ctx, userID, sessionName) {
		s.logger.Info("stopped monitor of deleted session", "user_id", userID, "session", sessionName)
	}
	return s.sessions.Delete(ctx, userID, sessionName)
}

// SetFilter upserts one rule for the session. At most one rule per
// kind exists; setting a kind again overwrites its value.
func (s *Sessions) SetFilter(ctx context.Context, userID int64, sessionName string, kind model.FilterKind, value string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown filter kind %q: %w", kind, model.ErrValidation)
	}
	if value == "" {
		return fmt.Errorf("empty filter value for kind %q: %w", kind, model.ErrValidation)
	}

	if _, err := s.sessions.Get(ctx, userID, sessionName); err != nil {
		return err
	}

	return s.filters.Upsert(ctx, model.FilterRule{
		UserID:      userID,
		SessionName: sessionName,
		Kind:        kind,
		Value:       value,
	})
}

// ClearFilters removes every rule of the session, returning it to the
// accept-everything state.
func (s *Sessions) ClearFilters(ctx context.Context, userID int64, sessionName string) error {
	if _, err := s.sessions.Get(ctx, userID, sessionName); err != nil {
		return err
	}
	return s.filters.DeleteBySession(ctx, userID, sessionName)
}

// ListFilters returns the session's current rule set.
func (s *Sessions) ListFilters(ctx context.Context, userID int64, sessionName string) ([]model.FilterRule, error) {
	if _, err := s.sessions.Get(ctx, userID, sessionName); err != nil {
		return nil, err
	}
	return s.filters.ListBySession(ctx, userID, sessionName)
}
