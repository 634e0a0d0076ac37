package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/telewatch/server/internal/api/http/middleware"
	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/notify"
)

// Feed streams forwarded matches to the user over server-sent events.
type Feed struct {
	hub    *notify.Hub
	logger *logger.Logger
}

func NewFeed(hub *notify.Hub, logger *logger.Logger) *Feed {
	return &Feed{hub: hub, logger: logger}
}

// Stream subscribes the client to its feed until it disconnects.
func (h *Feed) Stream(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.hub.Subscribe(userID)
	defer sub.Close()

	h.logger.Debug("feed opened", "user_id", userID)
	defer h.logger.Debug("feed closed", "user_id", userID)

	for {
		select {
		case <-r.Context().Done():
			return
		case text, open := <-sub.C:
			if !open {
				return
			}
			writeEvent(w, text)
			flusher.Flush()
		}
	}
}

// writeEvent frames one message as an SSE event. Multi-line payloads
// become one data field per line.
func writeEvent(w http.ResponseWriter, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
