package handler

import (
	"net/http"

	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
	"github.com/telewatch/server/internal/token"
)

// Token mints access tokens for known user IDs. Mounted only in dev
// mode; in production tokens are issued out of band with the shared
// secret.
type Token struct {
	jwt    *token.JWT
	logger *logger.Logger
}

func NewToken(jwt *token.JWT, logger *logger.Logger) *Token {
	return &Token{jwt: jwt, logger: logger}
}

type tokenRequest struct {
	UserID int64 `json:"user_id"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Mint issues an access token for the requested user ID.
func (h *Token) Mint(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}
	if req.UserID <= 0 {
		handleError(w, h.logger, model.ErrValidation)
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(req.UserID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: accessToken})
}
