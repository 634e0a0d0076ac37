package model

import "time"

// PendingLoginDuration is the TTL for in-flight login attempts.
const PendingLoginDuration = 10 * time.Minute

// AuthStage identifies the current step of a login attempt.
type AuthStage string

const (
	StageAwaitingPhone    AuthStage = "awaiting_phone"
	StageAwaitingCode     AuthStage = "awaiting_code"
	StageAwaitingPassword AuthStage = "awaiting_password"
	StageComplete         AuthStage = "complete"
	StageFailed           AuthStage = "failed"
)

// AuthSession is the transient, in-memory state of one user's login
// attempt. At most one exists per user; starting a new login discards
// any pending one.
type AuthSession struct {
	UserID         int64
	PhoneNumber    string
	ChallengeToken string
	Conn           LoginConn
	Stage          AuthStage
	ExpiresAt      time.Time
}

// Expired reports whether the attempt outlived its TTL.
func (s *AuthSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
