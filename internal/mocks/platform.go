package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/telewatch/server/internal/model"
)

// Dialer mocks the model.Dialer interface.
type Dialer struct {
	mock.Mock
}

func (m *Dialer) DialLogin(ctx context.Context) (model.LoginConn, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.LoginConn), args.Error(1)
}

func (m *Dialer) Dial(ctx context.Context, credentialBlob string) (model.Conn, error) {
	args := m.Called(ctx, credentialBlob)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Conn), args.Error(1)
}

// LoginConn mocks the model.LoginConn interface.
type LoginConn struct {
	mock.Mock
}

func (m *LoginConn) SendCode(ctx context.Context, phone string) (string, error) {
	args := m.Called(ctx, phone)
	return args.String(0), args.Error(1)
}

func (m *LoginConn) SignIn(ctx context.Context, phone, code, challengeToken string) error {
	args := m.Called(ctx, phone, code, challengeToken)
	return args.Error(0)
}

func (m *LoginConn) SignInWithPassword(ctx context.Context, password string) error {
	args := m.Called(ctx, password)
	return args.Error(0)
}

func (m *LoginConn) ExportCredential() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *LoginConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Conn mocks the model.Conn interface.
type Conn struct {
	mock.Mock
}

func (m *Conn) Events() <-chan model.InboundMessage {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(<-chan model.InboundMessage)
}

func (m *Conn) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Notifier mocks the model.Notifier interface.
type Notifier struct {
	mock.Mock
}

func (m *Notifier) Deliver(ctx context.Context, userID int64, text string) error {
	args := m.Called(ctx, userID, text)
	return args.Error(0)
}

// Archiver mocks the model.Archiver interface.
type Archiver struct {
	mock.Mock
}

func (m *Archiver) Store(ctx context.Context, key, text string) error {
	args := m.Called(ctx, key, text)
	return args.Error(0)
}
