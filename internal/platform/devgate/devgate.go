// Package devgate is an in-process implementation of the messaging
// platform boundary for development and tests. Login codes are checked
// against a configured value instead of a real network, and inbound
// streams are fed by Inject calls.
package devgate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
)

const blobPrefix = "devgate:"

var _ model.Dialer = (*Gate)(nil)

// Gate hands out development connections. One Gate serves the whole
// process; credentials it exports are only honored by the same Gate type.
type Gate struct {
	code     string
	password string
	buffer   int
	logger   *logger.Logger
}

// New creates a Gate accepting the given login code. An empty password
// means accounts have no secondary password.
func New(code, password string, buffer int, logger *logger.Logger) *Gate {
	if buffer <= 0 {
		buffer = 16
	}
	return &Gate{
		code:     code,
		password: password,
		buffer:   buffer,
		logger:   logger,
	}
}

// DialLogin opens a connection for a challenge/response login flow.
func (g *Gate) DialLogin(_ context.Context) (model.LoginConn, error) {
	return &LoginConn{gate: g}, nil
}

// Dial restores a connection from a credential blob previously produced
// by ExportCredential.
func (g *Gate) Dial(_ context.Context, credentialBlob string) (model.Conn, error) {
	if !strings.HasPrefix(credentialBlob, blobPrefix) {
		return nil, fmt.Errorf("credential blob not recognized: %w", model.ErrConnection)
	}
	g.logger.Debug("devgate: restored connection")
	return NewConn(g.buffer), nil
}

var _ model.LoginConn = (*LoginConn)(nil)

// LoginConn drives one login flow against the gate.
type LoginConn struct {
	gate *Gate

	mu        sync.Mutex
	phone     string
	challenge string
	signedIn  bool
}

// SendCode validates the phone format and issues a challenge token. The
// code itself is never transmitted anywhere; the gate compares against
// its configured value on sign-in.
func (c *LoginConn) SendCode(_ context.Context, phone string) (string, error) {
	if !validPhone(phone) {
		return "", fmt.Errorf("phone number %q rejected: %w", phone, model.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.phone = phone
	c.challenge = uuid.NewString()
	c.gate.logger.Debug("devgate: code challenge issued", "phone", phone)
	return c.challenge, nil
}

func (c *LoginConn) SignIn(_ context.Context, phone, code, challengeToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.challenge == "" || challengeToken != c.challenge || phone != c.phone {
		return fmt.Errorf("challenge token expired: %w", model.ErrAuth)
	}
	if code != c.gate.code {
		return fmt.Errorf("login code rejected: %w", model.ErrAuth)
	}
	if c.gate.password != "" {
		return model.ErrPasswordRequired
	}

	c.signedIn = true
	return nil
}

func (c *LoginConn) SignInWithPassword(_ context.Context, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if password != c.gate.password {
		return fmt.Errorf("password rejected: %w", model.ErrAuth)
	}

	c.signedIn = true
	return nil
}

func (c *LoginConn) ExportCredential() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.signedIn {
		return "", fmt.Errorf("not signed in: %w", model.ErrAuth)
	}
	return blobPrefix + c.phone + ":" + uuid.NewString(), nil
}

func (c *LoginConn) Close() error {
	return nil
}

var _ model.Conn = (*Conn)(nil)

// Conn is a development connection whose inbound stream is fed by Inject.
type Conn struct {
	events    chan model.InboundMessage
	closeOnce sync.Once
}

// NewConn creates a connection with a buffered inbound stream.
func NewConn(buffer int) *Conn {
	return &Conn{events: make(chan model.InboundMessage, buffer)}
}

func (c *Conn) Events() <-chan model.InboundMessage {
	return c.events
}

// Inject feeds one message into the inbound stream. Returns false after
// the connection was closed.
func (c *Conn) Inject(msg model.InboundMessage) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	c.events <- msg
	return true
}

// Close ends the inbound stream. Listeners observe the closed channel as
// a disconnect.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.events)
	})
	return nil
}

func validPhone(phone string) bool {
	if len(phone) < 8 || !strings.HasPrefix(phone, "+") {
		return false
	}
	for _, r := range phone[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
