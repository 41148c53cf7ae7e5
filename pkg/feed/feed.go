// Package feed maintains a client-side view of a notification scope. It
// merges pull snapshots with pushed notifications, deduplicates by id,
// and applies read-state changes optimistically so the unread badge never
// waits on the network.
package feed

import (
	"encoding/json"
	"sync"
	"time"
)

// Notification is the client-side representation of one notification.
type Notification struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Title     string          `json:"title"`
	Body      string          `json:"body,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	IsRead    bool            `json:"isRead"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Feed holds the merged notification list, newest first. All methods are
// safe for concurrent use; the push listener and the UI goroutine share
// one Feed.
type Feed struct {
	mu    sync.Mutex
	items []Notification

	// pendingRead holds ids marked read before the notification itself
	// arrived. A later push or snapshot for such an id lands already
	// read instead of flashing unread.
	pendingRead map[string]struct{}
}

// New creates an empty feed.
func New() *Feed {
	return &Feed{
		pendingRead: make(map[string]struct{}),
	}
}

// Seed replaces the feed contents with a pull snapshot. Pending read
// marks are applied to matching items and retained for items the
// snapshot does not contain.
func (f *Feed) Seed(items []Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = make([]Notification, len(items))
	copy(f.items, items)

	for i := range f.items {
		if _, ok := f.pendingRead[f.items[i].ID]; ok {
			f.items[i].IsRead = true
			delete(f.pendingRead, f.items[i].ID)
		}
	}
}

// Prepend adds a pushed notification to the head of the feed. A
// duplicate id is ignored, so a push that races a pull snapshot cannot
// double an entry.
func (f *Feed) Prepend(n Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.items {
		if f.items[i].ID == n.ID {
			return false
		}
	}

	if _, ok := f.pendingRead[n.ID]; ok {
		n.IsRead = true
		delete(f.pendingRead, n.ID)
	}

	f.items = append([]Notification{n}, f.items...)
	return true
}

// MarkRead flips the given ids to read locally. Ids not present yet are
// remembered so the eventual arrival lands read.
func (f *Feed) MarkRead(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	remaining := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remaining[id] = struct{}{}
	}

	for i := range f.items {
		if _, ok := remaining[f.items[i].ID]; ok {
			f.items[i].IsRead = true
			delete(remaining, f.items[i].ID)
		}
	}

	for id := range remaining {
		f.pendingRead[id] = struct{}{}
	}
}

// MarkAllRead flips every held notification to read.
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.items {
		f.items[i].IsRead = true
	}
}

// Remove drops one notification from the feed.
func (f *Feed) Remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the feed.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = nil
}

// UnreadCount returns the number of unread notifications. It is always
// derived from the items, never tracked as a separate counter.
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for i := range f.items {
		if !f.items[i].IsRead {
			count++
		}
	}
	return count
}

// Len returns the number of held notifications.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.items)
}

// Items returns a copy of the feed, newest first.
func (f *Feed) Items() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Notification, len(f.items))
	copy(out, f.items)
	return out
}
