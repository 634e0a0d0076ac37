package http

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/telewatch/server/internal/api/http/handler"
	"github.com/telewatch/server/internal/mocks"
	"github.com/telewatch/server/internal/model"
	"github.com/telewatch/server/internal/notify"
	"github.com/telewatch/server/internal/platform/devgate"
	"github.com/telewatch/server/internal/service"
	"github.com/telewatch/server/internal/testutil"
	"github.com/telewatch/server/internal/token"
)

type apiEnv struct {
	router   http.Handler
	sessions *mocks.SessionStore
	filters  *mocks.FilterStore
	hub      *notify.Hub
	jwt      *token.JWT
	monitors *service.Monitors
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	log := testutil.MakeNoopLogger()

	e := &apiEnv{
		sessions: &mocks.SessionStore{},
		filters:  &mocks.FilterStore{},
		hub:      notify.NewHub(16, log),
		jwt:      token.NewJWT("test-secret"),
	}

	gate := devgate.New("654321", "", 16, log)
	forward := service.NewForwarder(e.hub, nil, log)
	e.monitors = service.NewMonitors(e.sessions, e.filters, gate,
		service.NewFilters(log), forward, service.ReconnectPolicy{}, log)
	sessionsSvc := service.NewSessions(e.sessions, e.filters, e.monitors, log)
	authSvc := service.NewAuth(e.sessions, gate, log)

	e.router = NewRouter(log, e.jwt, Handlers{
		Auth:    handler.NewAuth(authSvc, log),
		Monitor: handler.NewMonitor(e.monitors, log),
		Session: handler.NewSession(sessionsSvc, log),
		Feed:    handler.NewFeed(e.hub, log),
		Token:   handler.NewToken(e.jwt, log),
	})
	t.Cleanup(e.monitors.Shutdown)
	return e
}

func (e *apiEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) tokenFor(t *testing.T, userID int64) string {
	t.Helper()
	access, err := e.jwt.GenerateAccessToken(userID)
	require.NoError(t, err)
	return access
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestRouter_Authentication(t *testing.T) {
	e := newAPIEnv(t)

	t.Run("missing token", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/monitors", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/monitors", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/monitors", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("minted token is accepted", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/token", "", map[string]any{"user_id": 42})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[map[string]string](t, rec)

		rec = e.do(t, http.MethodGet, "/v1/monitors", resp["token"], nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health is open", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRouter_LoginFlow(t *testing.T) {
	e := newAPIEnv(t)
	bearer := e.tokenFor(t, 42)

	e.sessions.On("Create", mock.Anything, int64(42), "+15551234567", mock.AnythingOfType("string")).
		Return(model.SessionRecord{UserID: 42, SessionName: "session_42_1", CredentialBlob: "devgate:+15551234567:x"}, nil)

	t.Run("bad phone", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/login/start", bearer, map[string]string{"phone": "nope"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec := e.do(t, http.MethodPost, "/v1/login/start", bearer, map[string]string{"phone": "+15551234567"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "awaiting_code", decodeBody[map[string]string](t, rec)["stage"])

	t.Run("wrong code", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/login/code", bearer, map[string]string{"code": "111111"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	rec = e.do(t, http.MethodPost, "/v1/login/code", bearer, map[string]string{"code": "654321"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "complete", body["stage"])
	assert.Equal(t, "session_42_1", body["session_name"])
	assert.NotEmpty(t, body["credential_blob"])

	t.Run("cancel with nothing pending", func(t *testing.T) {
		rec := e.do(t, http.MethodDelete, "/v1/login", bearer, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_Monitors(t *testing.T) {
	e := newAPIEnv(t)
	bearer := e.tokenFor(t, 42)

	record := model.SessionRecord{
		UserID: 42, SessionName: "session_42_1",
		CredentialBlob: "devgate:+15551234567:x", PhoneNumber: "+15551234567", Active: true,
	}
	e.sessions.On("Get", mock.Anything, int64(42), "session_42_1").Return(record, nil)
	e.sessions.On("Get", mock.Anything, int64(42), "session_42_9").Return(model.SessionRecord{}, model.ErrNotFound)

	t.Run("unknown session", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/monitors/session_42_9", bearer, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	rec := e.do(t, http.MethodPost, "/v1/monitors/session_42_1", bearer, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("double start conflicts", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/monitors/session_42_1", bearer, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("list shows running monitor", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/monitors", bearer, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[map[string][]string](t, rec)
		assert.Equal(t, []string{"session_42_1"}, resp["monitors"])
	})

	rec = e.do(t, http.MethodDelete, "/v1/monitors/session_42_1", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody[map[string]any](t, rec)["stopped"])

	t.Run("stop absent monitor", func(t *testing.T) {
		rec := e.do(t, http.MethodDelete, "/v1/monitors/session_42_1", bearer, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(0), decodeBody[map[string]any](t, rec)["stopped"])
	})

	t.Run("stop all", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/monitors/session_42_1", bearer, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		rec = e.do(t, http.MethodDelete, "/v1/monitors", bearer, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), decodeBody[map[string]any](t, rec)["stopped"])
	})
}

func TestRouter_Sessions(t *testing.T) {
	e := newAPIEnv(t)
	bearer := e.tokenFor(t, 42)

	t.Run("empty list is not found", func(t *testing.T) {
		e.sessions.On("ListByUser", mock.Anything, int64(42)).Return([]model.SessionRecord(nil), nil).Once()
		rec := e.do(t, http.MethodGet, "/v1/sessions", bearer, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		e.sessions.On("ListByUser", mock.Anything, int64(42)).Return([]model.SessionRecord{
			{UserID: 42, SessionName: "session_42_1", PhoneNumber: "+15551234567", Active: true},
		}, nil).Once()
		rec := e.do(t, http.MethodGet, "/v1/sessions", bearer, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[[]map[string]any](t, rec)
		require.Len(t, resp, 1)
		assert.Equal(t, "session_42_1", resp[0]["session_name"])
	})

	t.Run("set filter", func(t *testing.T) {
		e.sessions.On("Get", mock.Anything, int64(42), "session_42_1").Return(model.SessionRecord{}, nil)
		e.filters.On("Upsert", mock.Anything, model.FilterRule{
			UserID: 42, SessionName: "session_42_1", Kind: model.FilterKindKeyword, Value: "urgent",
		}).Return(nil)

		rec := e.do(t, http.MethodPut, "/v1/sessions/session_42_1/filters", bearer,
			map[string]string{"kind": "keyword", "value": "urgent"})
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("set filter of unknown kind", func(t *testing.T) {
		rec := e.do(t, http.MethodPut, "/v1/sessions/session_42_1/filters", bearer,
			map[string]string{"kind": "glob", "value": "*"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list filters", func(t *testing.T) {
		e.filters.On("ListBySession", mock.Anything, int64(42), "session_42_1").Return([]model.FilterRule{
			{UserID: 42, SessionName: "session_42_1", Kind: model.FilterKindKeyword, Value: "urgent"},
		}, nil)

		rec := e.do(t, http.MethodGet, "/v1/sessions/session_42_1/filters", bearer, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[[]map[string]string](t, rec)
		require.Len(t, resp, 1)
		assert.Equal(t, "urgent", resp[0]["value"])
	})

	t.Run("delete session", func(t *testing.T) {
		e.sessions.On("Delete", mock.Anything, int64(42), "session_42_1").Return(nil)
		rec := e.do(t, http.MethodDelete, "/v1/sessions/session_42_1", bearer, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRouter_Feed(t *testing.T) {
	e := newAPIEnv(t)
	bearer := e.tokenFor(t, 42)

	srv := httptest.NewServer(e.router)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/feed", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Wait for the subscription to register, then push a match.
	require.Eventually(t, func() bool {
		return e.hub.Deliver(req.Context(), 42, "Message from session session_42_1\nText: hi") == nil
	}, 2*time.Second, 10*time.Millisecond)

	scanner := bufio.NewScanner(resp.Body)
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" && len(data) > 0 {
			break
		}
		if strings.HasPrefix(line, "data: ") {
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}

	require.Len(t, data, 2, fmt.Sprintf("unexpected event lines: %v", data))
	assert.Equal(t, "Message from session session_42_1", data[0])
	assert.Equal(t, "Text: hi", data[1])
}
