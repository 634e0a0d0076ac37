package model

import "context"

// Notifier delivers rendered matches to the owning user's control
// channel. Delivery is best-effort, at-most-once.
type Notifier interface {
	Deliver(ctx context.Context, userID int64, text string) error
}

// Archiver stores rendered matches for later retrieval. Optional.
type Archiver interface {
	Store(ctx context.Context, key, text string) error
}
