package websocket

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
)

func newTestClient() *Client {
	return &Client{
		send: make(chan *domain.Notification, 8),
		done: make(chan struct{}),
	}
}

func TestRegistryBindAndLookup(t *testing.T) {
	r := NewRegistry()
	scope := domain.ScopeForUser(uuid.New())

	c1 := newTestClient()
	c2 := newTestClient()

	r.Bind(scope, c1)
	r.Bind(scope, c2)

	targets := r.Lookup(scope)
	assert.Len(t, targets, 2)
	assert.Contains(t, targets, c1)
	assert.Contains(t, targets, c2)
	assert.Equal(t, 2, r.ConnectionCount())
}

func TestRegistryLookupUnknownScope(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Lookup(domain.AdminBroadcast))
}

func TestRegistryUnbind(t *testing.T) {
	r := NewRegistry()
	scope := domain.ScopeForUser(uuid.New())
	c := newTestClient()

	r.Bind(scope, c)
	require.Len(t, r.Lookup(scope), 1)

	r.Unbind(c)
	assert.Empty(t, r.Lookup(scope))
	assert.Equal(t, 0, r.ConnectionCount())

	_, bound := r.ScopeOf(c)
	assert.False(t, bound)

	// Unbinding twice is a no-op.
	r.Unbind(c)
	assert.Equal(t, 0, r.ConnectionCount())
}

func TestRegistryUnbindNeverJoined(t *testing.T) {
	r := NewRegistry()
	r.Unbind(newTestClient())
	assert.Equal(t, 0, r.ConnectionCount())
}

func TestRegistryRebindMovesScope(t *testing.T) {
	r := NewRegistry()
	oldScope := domain.ScopeForUser(uuid.New())
	newScope := domain.ScopeForUser(uuid.New())
	c := newTestClient()

	r.Bind(oldScope, c)
	r.Bind(newScope, c)

	assert.Empty(t, r.Lookup(oldScope))
	assert.Len(t, r.Lookup(newScope), 1)

	scope, bound := r.ScopeOf(c)
	require.True(t, bound)
	assert.Equal(t, newScope, scope)
}

func TestRegistryScopeIsolation(t *testing.T) {
	r := NewRegistry()
	userScope := domain.ScopeForUser(uuid.New())

	userClient := newTestClient()
	adminClient := newTestClient()

	r.Bind(userScope, userClient)
	r.Bind(domain.AdminBroadcast, adminClient)

	assert.Equal(t, []*Client{userClient}, r.Lookup(userScope))
	assert.Equal(t, []*Client{adminClient}, r.Lookup(domain.AdminBroadcast))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	scope := domain.ScopeForUser(uuid.New())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newTestClient()
			r.Bind(scope, c)
			r.Lookup(scope)
			r.Unbind(c)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.ConnectionCount())
}
