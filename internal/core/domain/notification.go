package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Pre-defined errors for domain-specific validation.
var (
	ErrScopeRequired = errors.New("recipient scope is required")
	ErrTitleRequired = errors.New("title is required")
	ErrInvalidKind   = errors.New("invalid notification kind")
)

// Kind is the closed set of notification categories.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindSystem      Kind = "system"
	KindAlert       Kind = "alert"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTransaction, KindSystem, KindAlert:
		return true
	}
	return false
}

// RecipientScope identifies who a notification is addressed to: a single
// user (the user's UUID in string form) or the shared admin group.
type RecipientScope string

// AdminBroadcast is the sentinel scope for notifications visible to every
// connected admin session.
const AdminBroadcast RecipientScope = "admin-broadcast"

// ScopeForUser builds the scope addressing a single user.
func ScopeForUser(userID uuid.UUID) RecipientScope {
	return RecipientScope(userID.String())
}

// IsAdminBroadcast reports whether the scope targets the admin group.
func (s RecipientScope) IsAdminBroadcast() bool {
	return s == AdminBroadcast
}

// UserID returns the user the scope addresses, if it is a user scope.
func (s RecipientScope) UserID() (uuid.UUID, bool) {
	if s.IsAdminBroadcast() {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(string(s))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Notification is the core domain entity. Scope, Kind, Title, Body and
// CreatedAt are immutable after creation; IsRead only transitions from
// false to true.
type Notification struct {
	ID        uuid.UUID
	Seq       int64
	Scope     RecipientScope
	Kind      Kind
	Title     string
	Body      string
	Metadata  json.RawMessage
	IsRead    bool
	CreatedAt time.Time
}

// NewNotification is a factory function to create a valid unread notification.
// ID, Seq and CreatedAt are assigned by the store on insert.
func NewNotification(scope RecipientScope, kind Kind, title, body string, metadata json.RawMessage) (*Notification, error) {
	if scope == "" {
		return nil, ErrScopeRequired
	}
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if title == "" {
		return nil, ErrTitleRequired
	}

	return &Notification{
		Scope:    scope,
		Kind:     kind,
		Title:    title,
		Body:     body,
		Metadata: metadata,
		IsRead:   false,
	}, nil
}

// UnreadCount recomputes the number of unread notifications in a list.
// It is always derived from the IsRead flags, never stored separately.
func UnreadCount(list []*Notification) int {
	count := 0
	for _, n := range list {
		if !n.IsRead {
			count++
		}
	}
	return count
}
