package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
)

// Forwarder renders matched messages and hands them to the user's feed.
// Delivery failures are logged and dropped so that a slow or absent
// consumer never stalls a listener.
type Forwarder struct {
	notifier model.Notifier
	archive  model.Archiver
	logger   *logger.Logger
}

// NewForwarder creates a forwarder. A nil archive disables archiving.
func NewForwarder(notifier model.Notifier, archive model.Archiver, logger *logger.Logger) *Forwarder {
	return &Forwarder{
		notifier: notifier,
		archive:  archive,
		logger:   logger,
	}
}

// Render formats one matched message for delivery.
func (f *Forwarder) Render(handle model.MonitorHandle, msg model.InboundMessage) string {
	return fmt.Sprintf("Message from session %s\nFrom: %d\nText: %s\nTime: %s",
		handle.SessionName, msg.SenderID, msg.Text, msg.Timestamp.UTC().Format("2006-01-02 15:04:05"))
}

// Deliver sends the rendered message to the user's feed and, when
// archiving is enabled, stores a copy.
func (f *Forwarder) Deliver(ctx context.Context, handle model.MonitorHandle, msg model.InboundMessage) {
	text := f.Render(handle, msg)

	if err := f.notifier.Deliver(ctx, handle.UserID, text); err != nil {
		f.logger.Debug("dropping notification",
			"user_id", handle.UserID, "session", handle.SessionName, "error", err)
	}

	if f.archive == nil {
		return
	}
	key := fmt.Sprintf("matches/%d/%s/%s", handle.UserID, handle.SessionName, uuid.NewString())
	if err := f.archive.Store(ctx, key, text); err != nil {
		f.logger.Error("failed to archive match",
			"user_id", handle.UserID, "session", handle.SessionName, "error", err)
	}
}
