package handler

import (
	"net/http"

	"github.com/telewatch/server/internal/api/http/middleware"
	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
	"github.com/telewatch/server/internal/service"
)

// Auth exposes the phone-challenge login flow.
type Auth struct {
	auth   *service.Auth
	logger *logger.Logger
}

func NewAuth(auth *service.Auth, logger *logger.Logger) *Auth {
	return &Auth{auth: auth, logger: logger}
}

type startLoginRequest struct {
	Phone string `json:"phone"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type loginStateResponse struct {
	Stage          model.AuthStage `json:"stage"`
	SessionName    string          `json:"session_name,omitempty"`
	CredentialBlob string          `json:"credential_blob,omitempty"`
}

// Start begins a login for the phone number in the request body.
func (h *Auth) Start(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req startLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	stage, err := h.auth.Start(r.Context(), userID, req.Phone)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, loginStateResponse{Stage: stage})
}

// SubmitCode submits the challenge code for the pending login.
func (h *Auth) SubmitCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	stage, rec, err := h.auth.SubmitCode(r.Context(), userID, req.Code)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse(stage, rec))
}

// SubmitPassword submits the secondary password for the pending login.
func (h *Auth) SubmitPassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	stage, rec, err := h.auth.SubmitPassword(r.Context(), userID, req.Password)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse(stage, rec))
}

// Cancel discards the pending login.
func (h *Auth) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	if !h.auth.Cancel(userID) {
		handleError(w, h.logger, model.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loginResponse includes the persisted session only once, on the
// response that completes the flow.
func loginResponse(stage model.AuthStage, rec *model.SessionRecord) loginStateResponse {
	resp := loginStateResponse{Stage: stage}
	if rec != nil {
		resp.SessionName = rec.SessionName
		resp.CredentialBlob = rec.CredentialBlob
	}
	return resp
}
