package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/telewatch/server/internal/api/http/middleware"
	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
	"github.com/telewatch/server/internal/service"
)

// Session exposes stored sessions and their filter rules.
type Session struct {
	sessions *service.Sessions
	logger   *logger.Logger
}

func NewSession(sessions *service.Sessions, logger *logger.Logger) *Session {
	return &Session{sessions: sessions, logger: logger}
}

type sessionResponse struct {
	SessionName string    `json:"session_name"`
	PhoneNumber string    `json:"phone_number"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type filterRuleRequest struct {
	Kind  model.FilterKind `json:"kind"`
	Value string           `json:"value"`
}

type filterRuleResponse struct {
	Kind  model.FilterKind `json:"kind"`
	Value string           `json:"value"`
}

// List returns the user's stored sessions in creation order.
func (h *Session) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	records, err := h.sessions.List(r.Context(), userID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	resp := make([]sessionResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, sessionResponse{
			SessionName: rec.SessionName,
			PhoneNumber: rec.PhoneNumber,
			Active:      rec.Active,
			CreatedAt:   rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete removes a stored session, stopping its monitor if running.
func (h *Session) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	sessionName := chi.URLParam(r, "session")

	if err := h.sessions.Delete(r.Context(), userID, sessionName); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetFilter upserts one filter rule for the session.
func (h *Session) SetFilter(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	sessionName := chi.URLParam(r, "session")

	var req filterRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	if err := h.sessions.SetFilter(r.Context(), userID, sessionName, req.Kind, req.Value); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFilters returns the session's current rule set.
func (h *Session) ListFilters(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	sessionName := chi.URLParam(r, "session")

	rules, err := h.sessions.ListFilters(r.Context(), userID, sessionName)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	resp := make([]filterRuleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, filterRuleResponse{Kind: rule.Kind, Value: rule.Value})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClearFilters removes every rule of the session.
func (h *Session) ClearFilters(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	sessionName := chi.URLParam(r, "session")

	if err := h.sessions.ClearFilters(r.Context(), userID, sessionName); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
