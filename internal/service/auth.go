package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
)

// Auth drives the phone-challenge login flow. Pending logins live in
// memory only; once a login completes the exported credential is
// persisted as a session record and the pending state is discarded.
type Auth struct {
	sessions model.SessionStore
	dialer   model.Dialer
	logger   *logger.Logger

	mu     sync.Mutex
	logins map[int64]*model.AuthSession
}

func NewAuth(sessions model.SessionStore, dialer model.Dialer, logger *logger.Logger) *Auth {
	return &Auth{
		sessions: sessions,
		dialer:   dialer,
		logger:   logger,
		logins:   make(map[int64]*model.AuthSession),
	}
}

// Start begins a login for the user's phone number. A login already in
// progress for the same user is superseded. On success the user is
// expected to call SubmitCode with the code received out of band.
func (a *Auth) Start(ctx context.Context, userID int64, phone string) (model.AuthStage, error) {
	login := &model.AuthSession{
		UserID:      userID,
		PhoneNumber: phone,
		Stage:       model.StageAwaitingPhone,
		ExpiresAt:   time.Now().Add(model.PendingLoginDuration),
	}

	a.mu.Lock()
	if prev, ok := a.logins[userID]; ok {
		a.closeLogin(prev)
	}
	a.logins[userID] = login
	a.mu.Unlock()

	conn, err := a.dialer.DialLogin(ctx)
	if err != nil {
		a.dropIfCurrent(userID, login)
		return "", asConnErr(err)
	}

	token, err := conn.SendCode(ctx, phone)
	if err != nil {
		_ = conn.Close()
		if errors.Is(err, model.ErrValidation) {
			return model.StageAwaitingPhone, err
		}
		return model.StageAwaitingPhone, asConnErr(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.logins[userID] != login {
		_ = conn.Close()
		return "", fmt.Errorf("login superseded: %w", model.ErrNotFound)
	}
	login.Conn = conn
	login.ChallengeToken = token
	login.Stage = model.StageAwaitingCode

	a.logger.Info("login code sent", "user_id", userID)
	return model.StageAwaitingCode, nil
}

// SubmitCode submits the challenge code. On completion the persisted
// session record is returned; when the account carries a secondary
// password the flow moves to the password stage instead.
func (a *Auth) SubmitCode(ctx context.Context, userID int64, code string) (model.AuthStage, *model.SessionRecord, error) {
	login, err := a.pending(userID, model.StageAwaitingCode)
	if err != nil {
		return "", nil, err
	}

	err = login.Conn.SignIn(ctx, login.PhoneNumber, code, login.ChallengeToken)
	switch {
	case err == nil:
		return a.complete(ctx, login)
	case errors.Is(err, model.ErrPasswordRequired):
		a.mu.Lock()
		login.Stage = model.StageAwaitingPassword
		a.mu.Unlock()
		return model.StageAwaitingPassword, nil, nil
	case errors.Is(err, model.ErrAuth):
		return model.StageAwaitingCode, nil, err
	default:
		return model.StageAwaitingCode, nil, asConnErr(err)
	}
}

// SubmitPassword submits the secondary password for accounts that
// require one after the code stage.
func (a *Auth) SubmitPassword(ctx context.Context, userID int64, password string) (model.AuthStage, *model.SessionRecord, error) {
	login, err := a.pending(userID, model.StageAwaitingPassword)
	if err != nil {
		return "", nil, err
	}

	err = login.Conn.SignInWithPassword(ctx, password)
	switch {
	case err == nil:
		return a.complete(ctx, login)
	case errors.Is(err, model.ErrAuth):
		return model.StageAwaitingPassword, nil, err
	default:
		return model.StageAwaitingPassword, nil, asConnErr(err)
	}
}

// Cancel discards the user's pending login, reporting whether one
// existed.
func (a *Auth) Cancel(userID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	login, ok := a.logins[userID]
	if !ok {
		return false
	}
	a.closeLogin(login)
	delete(a.logins, userID)
	return true
}

func (a *Auth) complete(ctx context.Context, login *model.AuthSession) (model.AuthStage, *model.SessionRecord, error) {
	blob, err := login.Conn.ExportCredential()
	if err != nil {
		return a.fail(login), nil, asConnErr(err)
	}

	rec, err := a.sessions.Create(ctx, login.UserID, login.PhoneNumber, blob)
	if err != nil {
		return a.fail(login), nil, fmt.Errorf("failed to persist session: %w", err)
	}

	a.mu.Lock()
	a.closeLogin(login)
	if a.logins[login.UserID] == login {
		delete(a.logins, login.UserID)
	}
	login.Stage = model.StageComplete
	a.mu.Unlock()

	a.logger.Info("login complete", "user_id", login.UserID, "session", rec.SessionName)
	return model.StageComplete, &rec, nil
}

// fail discards a login whose final step cannot be completed. The
// caller must start over.
func (a *Auth) fail(login *model.AuthSession) model.AuthStage {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closeLogin(login)
	if a.logins[login.UserID] == login {
		delete(a.logins, login.UserID)
	}
	login.Stage = model.StageFailed
	return model.StageFailed
}

// pending looks up the user's pending login and checks it is at the
// wanted stage. Expired logins are discarded on access.
func (a *Auth) pending(userID int64, want model.AuthStage) (*model.AuthSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	login, ok := a.logins[userID]
	if !ok {
		return nil, fmt.Errorf("no login in progress: %w", model.ErrNotFound)
	}
	if login.Expired(time.Now()) {
		a.closeLogin(login)
		delete(a.logins, userID)
		return nil, fmt.Errorf("login expired: %w", model.ErrNotFound)
	}
	if login.Stage != want {
		return nil, fmt.Errorf("login is at stage %s: %w", login.Stage, model.ErrValidation)
	}
	return login, nil
}

func (a *Auth) closeLogin(login *model.AuthSession) {
	if login.Conn != nil {
		if err := login.Conn.Close(); err != nil {
			a.logger.Debug("failed to close login connection", "user_id", login.UserID, "error", err)
		}
	}
}

func (a *Auth) dropIfCurrent(userID int64, login *model.AuthSession) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.logins[userID] == login {
		delete(a.logins, userID)
	}
}

// asConnErr classifies an error from the platform boundary. Errors that
// already carry a taxonomy sentinel pass through unchanged; anything
// else counts as a connection failure.
func asConnErr(err error) error {
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrAuth),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrAlreadyActive),
		errors.Is(err, model.ErrConnection):
		return err
	default:
		return fmt.Errorf("%s: %w", err, model.ErrConnection)
	}
}
