// Package mocks provides testify mocks for the model interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/telewatch/server/internal/model"
)

// SessionStore mocks the model.SessionStore interface.
type SessionStore struct {
	mock.Mock
}

func (m *SessionStore) Create(ctx context.Context, userID int64, phone, credentialBlob string) (model.SessionRecord, error) {
	args := m.Called(ctx, userID, phone, credentialBlob)
	return args.Get(0).(model.SessionRecord), args.Error(1)
}

func (m *SessionStore) Get(ctx context.Context, userID int64, sessionName string) (model.SessionRecord, error) {
	args := m.Called(ctx, userID, sessionName)
	return args.Get(0).(model.SessionRecord), args.Error(1)
}

func (m *SessionStore) ListByUser(ctx context.Context, userID int64) ([]model.SessionRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SessionRecord), args.Error(1)
}

func (m *SessionStore) SetActive(ctx context.Context, userID int64, sessionName string, active bool) error {
	args := m.Called(ctx, userID, sessionName, active)
	return args.Error(0)
}

func (m *SessionStore) Delete(ctx context.Context, userID int64, sessionName string) error {
	args := m.Called(ctx, userID, sessionName)
	return args.Error(0)
}

// FilterStore mocks the model.FilterStore interface.
type FilterStore struct {
	mock.Mock
}

func (m *FilterStore) Upsert(ctx context.Context, rule model.FilterRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *FilterStore) ListBySession(ctx context.Context, userID int64, sessionName string) ([]model.FilterRule, error) {
	args := m.Called(ctx, userID, sessionName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FilterRule), args.Error(1)
}

func (m *FilterStore) DeleteBySession(ctx context.Context, userID int64, sessionName string) error {
	args := m.Called(ctx, userID, sessionName)
	return args.Error(0)
}
