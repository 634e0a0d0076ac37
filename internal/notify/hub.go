// Package notify fans matched messages out to connected feed clients.
// Delivery is at-most-once: when a subscriber's buffer is full the
// message is dropped for that subscriber rather than blocking the
// monitoring pipeline.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
)

var _ model.Notifier = (*Hub)(nil)

// Hub routes rendered notifications to per-user subscriptions.
type Hub struct {
	buffer int
	logger *logger.Logger

	mu    sync.Mutex
	users map[int64]map[*Subscription]struct{}
}

func NewHub(buffer int, logger *logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		buffer: buffer,
		logger: logger,
		users:  make(map[int64]map[*Subscription]struct{}),
	}
}

// Subscription is one client's feed. Messages arrive on C until Close.
type Subscription struct {
	C <-chan string

	hub    *Hub
	userID int64
	ch     chan string
	once   sync.Once
}

// Subscribe registers a new feed for the user. The caller must Close
// the subscription when done.
func (h *Hub) Subscribe(userID int64) *Subscription {
	ch := make(chan string, h.buffer)
	sub := &Subscription{
		C:      ch,
		hub:    h,
		userID: userID,
		ch:     ch,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.users[userID]
	if subs == nil {
		subs = make(map[*Subscription]struct{})
		h.users[userID] = subs
	}
	subs[sub] = struct{}{}

	return sub
}

// Close detaches the subscription from the hub and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()

		subs := s.hub.users[s.userID]
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.hub.users, s.userID)
		}
		close(s.ch)
	})
}

// Deliver hands text to every subscription of the user without
// blocking. An error is returned when no subscriber received the text.
func (h *Hub) Deliver(_ context.Context, userID int64, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.users[userID]
	if len(subs) == 0 {
		return fmt.Errorf("no feed subscriber for user %d", userID)
	}

	delivered := 0
	for sub := range subs {
		select {
		case sub.ch <- text:
			delivered++
		default:
			h.logger.Debug("feed buffer full, dropping notification", "user_id", userID)
		}
	}
	if delivered == 0 {
		return fmt.Errorf("all feed buffers full for user %d", userID)
	}

	return nil
}
