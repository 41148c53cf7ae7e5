package feed

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notification(title string, read bool) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      "transaction",
		Title:     title,
		IsRead:    read,
		CreatedAt: time.Now(),
	}
}

func TestSeedReplacesContents(t *testing.T) {
	f := New()
	f.Prepend(notification("stale", false))

	snapshot := []Notification{
		notification("newest", false),
		notification("older", true),
	}
	f.Seed(snapshot)

	items := f.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "newest", items[0].Title)
	assert.Equal(t, 1, f.UnreadCount())
}

func TestPrependNewestFirst(t *testing.T) {
	f := New()
	f.Seed([]Notification{notification("existing", true)})

	pushed := notification("pushed", false)
	assert.True(t, f.Prepend(pushed))

	items := f.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "pushed", items[0].Title)
	assert.Equal(t, 1, f.UnreadCount())
}

func TestPrependDeduplicates(t *testing.T) {
	f := New()

	n := notification("once", false)
	assert.True(t, f.Prepend(n))

	// The same push arriving again, or racing a pull snapshot that
	// already contains it, must not double the entry.
	assert.False(t, f.Prepend(n))
	assert.Equal(t, 1, f.Len())
}

func TestMarkReadIsLocalAndImmediate(t *testing.T) {
	f := New()
	a := notification("a", false)
	b := notification("b", false)
	f.Seed([]Notification{a, b})

	f.MarkRead(a.ID)

	assert.Equal(t, 1, f.UnreadCount())
	items := f.Items()
	for _, item := range items {
		if item.ID == a.ID {
			assert.True(t, item.IsRead)
		}
	}
}

func TestMarkReadUnknownIDIsRemembered(t *testing.T) {
	f := New()

	// The read confirmation raced ahead of the push.
	n := notification("late arrival", false)
	f.MarkRead(n.ID)

	// When the push lands, it lands already read.
	require.True(t, f.Prepend(n))
	items := f.Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].IsRead)
	assert.Zero(t, f.UnreadCount())
}

func TestSeedAppliesPendingReads(t *testing.T) {
	f := New()

	n := notification("read before seen", false)
	f.MarkRead(n.ID)

	f.Seed([]Notification{n})

	items := f.Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].IsRead)
}

func TestMarkAllRead(t *testing.T) {
	f := New()
	f.Seed([]Notification{
		notification("a", false),
		notification("b", false),
		notification("c", true),
	})

	f.MarkAllRead()
	assert.Zero(t, f.UnreadCount())
}

func TestRemoveAndClear(t *testing.T) {
	f := New()
	a := notification("a", false)
	b := notification("b", false)
	f.Seed([]Notification{a, b})

	assert.True(t, f.Remove(a.ID))
	assert.False(t, f.Remove(a.ID))
	assert.Equal(t, 1, f.Len())

	f.Clear()
	assert.Zero(t, f.Len())
	assert.Zero(t, f.UnreadCount())
}

func TestUnreadCountDerivedFromItems(t *testing.T) {
	f := New()
	assert.Zero(t, f.UnreadCount())

	f.Seed([]Notification{
		notification("a", false),
		notification("b", true),
		notification("c", false),
	})
	assert.Equal(t, 2, f.UnreadCount())

	items := f.Items()
	f.MarkRead(items[0].ID, items[2].ID)
	assert.Zero(t, f.UnreadCount())
}
