package model

import "time"

// InboundMessage is one event received from an account's message stream.
type InboundMessage struct {
	SenderID  int64
	Text      string
	Timestamp time.Time
	Private   bool
}

// MonitorHandle identifies one running listener. It is owned exclusively
// by the monitor registry for the listener's lifetime.
type MonitorHandle struct {
	UserID      int64
	SessionName string
}
