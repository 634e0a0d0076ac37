package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

// handleError maps service errors onto HTTP status codes. Unclassified
// errors become 500 with a generic body; the detail stays in the log.
func handleError(w http.ResponseWriter, log *logger.Logger, err error) {
	var status int
	message := err.Error()

	switch {
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrAuth):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyActive):
		status = http.StatusConflict
	case errors.Is(err, model.ErrConnection):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
		message = "internal server error"
		log.Error("request failed", "error", err)
	}

	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.ErrValidation
	}
	return nil
}
