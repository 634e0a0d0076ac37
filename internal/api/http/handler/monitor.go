package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/telewatch/server/internal/api/http/middleware"
	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/service"
)

// Monitor exposes start/stop control over session listeners.
type Monitor struct {
	monitors *service.Monitors
	logger   *logger.Logger
}

func NewMonitor(monitors *service.Monitors, logger *logger.Logger) *Monitor {
	return &Monitor{monitors: monitors, logger: logger}
}

type monitorResponse struct {
	SessionName string `json:"session_name"`
	Running     bool   `json:"running"`
}

type stoppedResponse struct {
	Stopped int `json:"stopped"`
}

type monitorListResponse struct {
	Monitors []string `json:"monitors"`
}

// Start launches a listener for the named session.
func (h *Monitor) Start(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	sessionName := chi.URLParam(r, "session")

	if err := h.monitors.Start(r.Context(), userID, sessionName); err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, monitorResponse{SessionName: sessionName, Running: true})
}

// Stop halts the named session's listener.
func (h *Monitor) Stop(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	sessionName := chi.URLParam(r, "session")

	stopped := 0
	if h.monitors.Stop(r.Context(), userID, sessionName) {
		stopped = 1
	}
	writeJSON(w, http.StatusOK, stoppedResponse{Stopped: stopped})
}

// StopAll halts every listener of the user.
func (h *Monitor) StopAll(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	stopped := h.monitors.StopAll(r.Context(), userID)
	writeJSON(w, http.StatusOK, stoppedResponse{Stopped: stopped})
}

// List returns the user's running monitors.
func (h *Monitor) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	names := h.monitors.Active(userID)
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, monitorListResponse{Monitors: names})
}
