package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/telewatch/server/internal/mocks"
	"github.com/telewatch/server/internal/model"
	"github.com/telewatch/server/internal/platform/devgate"
	"github.com/telewatch/server/internal/testutil"
)

func TestAuth_LoginFlow(t *testing.T) {
	ctx := context.Background()
	gate := devgate.New("654321", "", 16, testutil.MakeNoopLogger())

	store := &mocks.SessionStore{}
	store.On("Create", mock.Anything, int64(42), "+15551234567", mock.AnythingOfType("string")).
		Return(model.SessionRecord{
			UserID:      42,
			SessionName: "session_42_1",
			Seq:         1,
			PhoneNumber: "+15551234567",
			Active:      true,
		}, nil)

	auth := NewAuth(store, gate, testutil.MakeNoopLogger())

	stage, err := auth.Start(ctx, 42, "+15551234567")
	require.NoError(t, err)
	require.Equal(t, model.StageAwaitingCode, stage)

	t.Run("wrong code keeps code stage", func(t *testing.T) {
		stage, rec, err := auth.SubmitCode(ctx, 42, "111111")
		assert.ErrorIs(t, err, model.ErrAuth)
		assert.Equal(t, model.StageAwaitingCode, stage)
		assert.Nil(t, rec)
	})

	t.Run("correct code completes and persists", func(t *testing.T) {
		stage, rec, err := auth.SubmitCode(ctx, 42, "654321")
		require.NoError(t, err)
		assert.Equal(t, model.StageComplete, stage)
		require.NotNil(t, rec)
		assert.Equal(t, "session_42_1", rec.SessionName)
		store.AssertExpectations(t)
	})

	t.Run("completed login leaves nothing pending", func(t *testing.T) {
		_, rec, err := auth.SubmitCode(ctx, 42, "654321")
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.Nil(t, rec)
	})
}

func TestAuth_PasswordStage(t *testing.T) {
	ctx := context.Background()
	gate := devgate.New("654321", "hunter2", 16, testutil.MakeNoopLogger())

	store := &mocks.SessionStore{}
	store.On("Create", mock.Anything, int64(42), "+15551234567", mock.AnythingOfType("string")).
		Return(model.SessionRecord{UserID: 42, SessionName: "session_42_1"}, nil)

	auth := NewAuth(store, gate, testutil.MakeNoopLogger())

	_, err := auth.Start(ctx, 42, "+15551234567")
	require.NoError(t, err)

	stage, rec, err := auth.SubmitCode(ctx, 42, "654321")
	require.NoError(t, err)
	require.Equal(t, model.StageAwaitingPassword, stage)
	require.Nil(t, rec)

	t.Run("code stage is closed once password is pending", func(t *testing.T) {
		_, _, err := auth.SubmitCode(ctx, 42, "654321")
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("wrong password keeps password stage", func(t *testing.T) {
		stage, _, err := auth.SubmitPassword(ctx, 42, "wrong")
		assert.ErrorIs(t, err, model.ErrAuth)
		assert.Equal(t, model.StageAwaitingPassword, stage)
	})

	stage, rec, err = auth.SubmitPassword(ctx, 42, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, stage)
	require.NotNil(t, rec)
	assert.Equal(t, "session_42_1", rec.SessionName)
}

func TestAuth_Start_Validation(t *testing.T) {
	ctx := context.Background()
	gate := devgate.New("654321", "", 16, testutil.MakeNoopLogger())
	auth := NewAuth(&mocks.SessionStore{}, gate, testutil.MakeNoopLogger())

	stage, err := auth.Start(ctx, 42, "not-a-phone")
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, model.StageAwaitingPhone, stage)
}

func TestAuth_Start_ConnectionFailure(t *testing.T) {
	ctx := context.Background()

	dialer := &mocks.Dialer{}
	dialer.On("DialLogin", mock.Anything).Return(nil, errors.New("network unreachable"))

	auth := NewAuth(&mocks.SessionStore{}, dialer, testutil.MakeNoopLogger())

	_, err := auth.Start(ctx, 42, "+15551234567")
	assert.ErrorIs(t, err, model.ErrConnection)
}

func TestAuth_Start_Supersedes(t *testing.T) {
	ctx := context.Background()
	gate := devgate.New("654321", "", 16, testutil.MakeNoopLogger())

	store := &mocks.SessionStore{}
	store.On("Create", mock.Anything, int64(42), "+15557654321", mock.AnythingOfType("string")).
		Return(model.SessionRecord{UserID: 42, SessionName: "session_42_1"}, nil)

	auth := NewAuth(store, gate, testutil.MakeNoopLogger())

	_, err := auth.Start(ctx, 42, "+15551234567")
	require.NoError(t, err)

	// A second Start replaces the pending login; the old challenge
	// token is no longer accepted.
	_, err = auth.Start(ctx, 42, "+15557654321")
	require.NoError(t, err)

	stage, _, err := auth.SubmitCode(ctx, 42, "654321")
	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, stage)
}

func TestAuth_Cancel(t *testing.T) {
	ctx := context.Background()
	gate := devgate.New("654321", "", 16, testutil.MakeNoopLogger())
	auth := NewAuth(&mocks.SessionStore{}, gate, testutil.MakeNoopLogger())

	assert.False(t, auth.Cancel(42))

	_, err := auth.Start(ctx, 42, "+15551234567")
	require.NoError(t, err)

	assert.True(t, auth.Cancel(42))

	_, _, err = auth.SubmitCode(ctx, 42, "654321")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAuth_PersistFailure(t *testing.T) {
	ctx := context.Background()
	gate := devgate.New("654321", "", 16, testutil.MakeNoopLogger())

	store := &mocks.SessionStore{}
	store.On("Create", mock.Anything, int64(42), "+15551234567", mock.AnythingOfType("string")).
		Return(model.SessionRecord{}, errors.New("db down"))

	auth := NewAuth(store, gate, testutil.MakeNoopLogger())

	_, err := auth.Start(ctx, 42, "+15551234567")
	require.NoError(t, err)

	stage, rec, err := auth.SubmitCode(ctx, 42, "654321")
	assert.Error(t, err)
	assert.Equal(t, model.StageFailed, stage)
	assert.Nil(t, rec)

	// The failed login is discarded; the user has to start over.
	_, _, err = auth.SubmitCode(ctx, 42, "654321")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAuth_ExpiredLogin(t *testing.T) {
	ctx := context.Background()
	gate := devgate.New("654321", "", 16, testutil.MakeNoopLogger())
	auth := NewAuth(&mocks.SessionStore{}, gate, testutil.MakeNoopLogger())

	_, err := auth.Start(ctx, 42, "+15551234567")
	require.NoError(t, err)

	auth.mu.Lock()
	auth.logins[42].ExpiresAt = time.Now().Add(-time.Minute)
	auth.mu.Unlock()

	_, _, err = auth.SubmitCode(ctx, 42, "654321")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
