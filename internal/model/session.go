package model

import (
	"context"
	"time"
)

// SessionStore defines persistence operations for session records.
type SessionStore interface {
	// Create persists a new record for the user, reserving the next
	// per-user sequence number for its name. Safe under concurrent
	// logins for the same user.
	Create(ctx context.Context, userID int64, phone, credentialBlob string) (SessionRecord, error)
	Get(ctx context.Context, userID int64, sessionName string) (SessionRecord, error)
	ListByUser(ctx context.Context, userID int64) ([]SessionRecord, error)
	SetActive(ctx context.Context, userID int64, sessionName string, active bool) error
	Delete(ctx context.Context, userID int64, sessionName string) error
}

// SessionRecord is the durable representation of one authenticated
// external account. CredentialBlob is opaque and written exactly once;
// re-authentication creates a new record instead of mutating it.
type SessionRecord struct {
	UserID         int64
	SessionName    string
	Seq            int
	CredentialBlob string
	PhoneNumber    string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
