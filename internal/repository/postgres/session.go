package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/telewatch/server/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

// createAttempts bounds retries when two concurrent logins for the same
// user race for the same sequence number.
const createAttempts = 3

type SessionRepository struct {
	db *Connection
}

func NewSessionRepository(db *Connection) *SessionRepository {
	return &SessionRepository{
		db: db,
	}
}

// Create inserts a new session record named session_<user>_<seq>, where
// seq is the next per-user sequence number. The seq is reserved in the
// same statement that reads it; the unique constraint on (user_id, seq)
// rejects the loser of a concurrent race, which is retried.
func (r *SessionRepository) Create(ctx context.Context, userID int64, phone, credentialBlob string) (model.SessionRecord, error) {
	query := `INSERT INTO user_sessions (user_id, session_name, seq, credential_blob, phone_number, active)
			  SELECT $1, 'session_' || $1 || '_' || next.seq, next.seq, $2, $3, TRUE
			  FROM (
				  SELECT COALESCE(MAX(seq), 0) + 1 AS seq FROM user_sessions WHERE user_id = $1
			  ) AS next
			  RETURNING user_id, session_name, seq, credential_blob, phone_number, active, created_at, updated_at`

	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		var rec model.SessionRecord
		err := r.db.QueryRow(ctx, query, userID, credentialBlob, phone).Scan(
			&rec.UserID, &rec.SessionName, &rec.Seq, &rec.CredentialBlob, &rec.PhoneNumber,
			&rec.Active, &rec.CreatedAt, &rec.UpdatedAt,
		)
		if err == nil {
			return rec, nil
		}
		if isUniqueViolation(err) {
			lastErr = err
			continue
		}
		return model.SessionRecord{}, fmt.Errorf("failed to create session record: %w", err)
	}

	return model.SessionRecord{}, fmt.Errorf("failed to reserve session name after %d attempts: %w", createAttempts, lastErr)
}

func (r *SessionRepository) Get(ctx context.Context, userID int64, sessionName string) (model.SessionRecord, error) {
	var rec model.SessionRecord
	query := `SELECT user_id, session_name, seq, credential_blob, phone_number, active, created_at, updated_at
			  FROM user_sessions WHERE user_id = $1 AND session_name = $2`

	err := r.db.QueryRow(ctx, query, userID, sessionName).Scan(
		&rec.UserID, &rec.SessionName, &rec.Seq, &rec.CredentialBlob, &rec.PhoneNumber,
		&rec.Active, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SessionRecord{}, model.ErrNotFound
		}
		return model.SessionRecord{}, fmt.Errorf("failed to get session record: %w", err)
	}

	return rec, nil
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID int64) ([]model.SessionRecord, error) {
	query := `SELECT user_id, session_name, seq, credential_blob, phone_number, active, created_at, updated_at
			  FROM user_sessions WHERE user_id = $1 ORDER BY seq`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session records: %w", err)
	}
	defer rows.Close()

	var records []model.SessionRecord
	for rows.Next() {
		var rec model.SessionRecord
		if err := rows.Scan(
			&rec.UserID, &rec.SessionName, &rec.Seq, &rec.CredentialBlob, &rec.PhoneNumber,
			&rec.Active, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session records: %w", err)
	}

	return records, nil
}

func (r *SessionRepository) SetActive(ctx context.Context, userID int64, sessionName string, active bool) error {
	query := `UPDATE user_sessions SET active = $3, updated_at = now()
			  WHERE user_id = $1 AND session_name = $2`

	tag, err := r.db.Exec(ctx, query, userID, sessionName, active)
	if err != nil {
		return fmt.Errorf("failed to update session record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, userID int64, sessionName string) error {
	query := `DELETE FROM user_sessions WHERE user_id = $1 AND session_name = $2`

	tag, err := r.db.Exec(ctx, query, userID, sessionName)
	if err != nil {
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
