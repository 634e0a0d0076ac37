package model

import "errors"

// Error taxonomy shared by services and the control API. Services wrap these
// sentinels with context; handlers map them to response codes with errors.Is.
var (
	// ErrValidation means the caller supplied malformed input.
	ErrValidation = errors.New("invalid input")
	// ErrAuth means a wrong or expired code/password. Recoverable: the
	// login flow stays at its current stage.
	ErrAuth = errors.New("authentication rejected")
	// ErrConnection means the messaging platform is unreachable or the
	// credential was revoked.
	ErrConnection = errors.New("platform connection failed")
	// ErrAlreadyActive means a monitor is already running for the key.
	ErrAlreadyActive = errors.New("monitor already active")
	// ErrNotFound means an unknown session, login attempt or record.
	ErrNotFound = errors.New("not found")
)
