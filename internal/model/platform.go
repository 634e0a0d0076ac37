package model

import (
	"context"
	"errors"
)

// ErrPasswordRequired is returned by SignIn when the account has a
// secondary password enabled.
var ErrPasswordRequired = errors.New("password required")

// Dialer opens connections to the external messaging platform. The
// platform SDK itself stays an opaque capability behind this boundary.
type Dialer interface {
	// DialLogin opens an unauthenticated connection for a login flow.
	DialLogin(ctx context.Context) (LoginConn, error)
	// Dial restores an authenticated connection from a credential blob
	// and subscribes it to the account's inbound stream.
	Dial(ctx context.Context, credentialBlob string) (Conn, error)
}

// LoginConn drives the challenge/response login flow on one connection.
type LoginConn interface {
	// SendCode asks the platform to deliver a login code to the phone
	// and returns the challenge token to present on sign-in. A rejected
	// phone number yields an error wrapping ErrValidation.
	SendCode(ctx context.Context, phone string) (string, error)
	// SignIn verifies the code against the challenge token. A wrong or
	// expired code wraps ErrAuth; ErrPasswordRequired means the flow
	// must continue with SignInWithPassword.
	SignIn(ctx context.Context, phone, code, challengeToken string) error
	// SignInWithPassword verifies the secondary password after SignIn
	// returned ErrPasswordRequired.
	SignInWithPassword(ctx context.Context, password string) error
	// ExportCredential serializes the authenticated session into an
	// opaque blob. Valid only after a successful sign-in.
	ExportCredential() (string, error)
	Close() error
}

// Conn is one authenticated connection subscribed to an account's
// inbound message stream.
type Conn interface {
	// Events returns the inbound stream. The channel is closed when the
	// connection is lost.
	Events() <-chan InboundMessage
	Close() error
}
