package postgres

import (
	"context"
	"fmt"

	"github.com/telewatch/server/internal/model"
)

var _ model.FilterStore = (*FilterRepository)(nil)

type FilterRepository struct {
	db *Connection
}

func NewFilterRepository(db *Connection) *FilterRepository {
	return &FilterRepository{
		db: db,
	}
}

// Upsert writes a rule, replacing any existing rule of the same kind for
// the session.
func (r *FilterRepository) Upsert(ctx context.Context, rule model.FilterRule) error {
	query := `INSERT INTO session_filters (user_id, session_name, kind, value)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (user_id, session_name, kind)
			  DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	_, err := r.db.Exec(ctx, query, rule.UserID, rule.SessionName, rule.Kind, rule.Value)
	if err != nil {
		return fmt.Errorf("failed to upsert filter rule: %w", err)
	}

	return nil
}

func (r *FilterRepository) ListBySession(ctx context.Context, userID int64, sessionName string) ([]model.FilterRule, error) {
	query := `SELECT user_id, session_name, kind, value
			  FROM session_filters WHERE user_id = $1 AND session_name = $2
			  ORDER BY kind`

	rows, err := r.db.Query(ctx, query, userID, sessionName)
	if err != nil {
		return nil, fmt.Errorf("failed to list filter rules: %w", err)
	}
	defer rows.Close()

	var rules []model.FilterRule
	for rows.Next() {
		var rule model.FilterRule
		if err := rows.Scan(&rule.UserID, &rule.SessionName, &rule.Kind, &rule.Value); err != nil {
			return nil, fmt.Errorf("failed to scan filter rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read filter rules: %w", err)
	}

	return rules, nil
}

func (r *FilterRepository) DeleteBySession(ctx context.Context, userID int64, sessionName string) error {
	query := `DELETE FROM session_filters WHERE user_id = $1 AND session_name = $2`

	if _, err := r.db.Exec(ctx, query, userID, sessionName); err != nil {
		return fmt.Errorf("failed to delete filter rules: %w", err)
	}

	return nil
}
