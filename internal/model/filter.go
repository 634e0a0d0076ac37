package model

import "context"

// FilterStore defines persistence operations for filter rules.
type FilterStore interface {
	// Upsert writes a rule, overwriting any existing rule of the same
	// kind for the session.
	Upsert(ctx context.Context, rule FilterRule) error
	ListBySession(ctx context.Context, userID int64, sessionName string) ([]FilterRule, error)
	DeleteBySession(ctx context.Context, userID int64, sessionName string) error
}

// FilterKind enumerates rule kinds. At most one rule per kind per session.
type FilterKind string

const (
	// FilterKindKeyword matches a case-insensitive substring of the text.
	FilterKindKeyword FilterKind = "keyword"
	// FilterKindRegex matches a case-insensitive pattern against the text.
	FilterKindRegex FilterKind = "regex"
	// FilterKindSender matches the sender identifier exactly.
	FilterKindSender FilterKind = "sender"
)

// Valid reports whether the kind is one of the known rule kinds.
func (k FilterKind) Valid() bool {
	switch k {
	case FilterKindKeyword, FilterKindRegex, FilterKindSender:
		return true
	}
	return false
}

// FilterRule is one monitoring rule, keyed (user, session, kind).
type FilterRule struct {
	UserID      int64
	SessionName string
	Kind        FilterKind
	Value       string
}
