package websocket

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
)

func newTestHub(t *testing.T, sendTimeout time.Duration) *Hub {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(NewRegistry(), sendTimeout, logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	return hub
}

func notificationFor(scope domain.RecipientScope) *domain.Notification {
	return &domain.Notification{
		ID:        uuid.New(),
		Scope:     scope,
		Kind:      domain.KindTransaction,
		Title:     "Deposit Completed",
		CreatedAt: time.Now(),
	}
}

func waitForNotification(t *testing.T, c *Client) *domain.Notification {
	t.Helper()

	select {
	case n := <-c.send:
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func TestHubDeliversToAllScopeConnections(t *testing.T) {
	hub := newTestHub(t, DefaultSendTimeout)

	// Two admin sessions, e.g. two open dashboard tabs.
	c1 := newTestClient()
	c2 := newTestClient()
	hub.Bind(domain.AdminBroadcast, c1)
	hub.Bind(domain.AdminBroadcast, c2)

	n := notificationFor(domain.AdminBroadcast)
	hub.Publish(n)

	assert.Equal(t, n, waitForNotification(t, c1))
	assert.Equal(t, n, waitForNotification(t, c2))
}

func TestHubDoesNotCrossScopes(t *testing.T) {
	hub := newTestHub(t, DefaultSendTimeout)

	userScope := domain.ScopeForUser(uuid.New())
	userClient := newTestClient()
	adminClient := newTestClient()
	hub.Bind(userScope, userClient)
	hub.Bind(domain.AdminBroadcast, adminClient)

	n := notificationFor(userScope)
	hub.Publish(n)

	assert.Equal(t, n, waitForNotification(t, userClient))

	select {
	case got := <-adminClient.send:
		t.Fatalf("admin client received notification for user scope: %v", got.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubPresenceMissIsSilentNoOp(t *testing.T) {
	hub := newTestHub(t, DefaultSendTimeout)

	// No connection is bound for this scope.
	hub.Publish(notificationFor(domain.ScopeForUser(uuid.New())))

	// Nothing to assert beyond the absence of panic or blocking; give the
	// run loop a moment to process.
	time.Sleep(50 * time.Millisecond)
}

func TestHubSlowConnectionDoesNotBlockOthers(t *testing.T) {
	hub := newTestHub(t, 50*time.Millisecond)

	scope := domain.ScopeForUser(uuid.New())

	// The stuck client's buffer is full and nobody drains it.
	stuck := &Client{
		send: make(chan *domain.Notification),
		done: make(chan struct{}),
	}
	healthy := newTestClient()

	hub.Bind(scope, stuck)
	hub.Bind(scope, healthy)

	n := notificationFor(scope)
	start := time.Now()
	hub.Publish(n)

	got := waitForNotification(t, healthy)
	assert.Equal(t, n, got)

	// The healthy client received its copy immediately; the stuck client's
	// full buffer dropped the push instead of stalling the fan-out.
	assert.Less(t, time.Since(start), time.Second)
}

func TestHubPreservesPerScopeOrder(t *testing.T) {
	hub := newTestHub(t, DefaultSendTimeout)

	scope := domain.ScopeForUser(uuid.New())
	c := &Client{
		send: make(chan *domain.Notification, 256),
		done: make(chan struct{}),
	}
	hub.Bind(scope, c)

	// A single producer creating notifications in sequence must see them
	// arrive in the same sequence on the connection.
	const count = 200
	sent := make([]*domain.Notification, count)
	for i := range sent {
		sent[i] = notificationFor(scope)
		hub.Publish(sent[i])
	}

	for i := 0; i < count; i++ {
		got := waitForNotification(t, c)
		require.Equal(t, sent[i].ID, got.ID, "notification %d arrived out of order", i)
	}
}

func TestHubDeliveryToClosedClientReturns(t *testing.T) {
	hub := newTestHub(t, time.Second)

	scope := domain.ScopeForUser(uuid.New())
	c := &Client{
		send: make(chan *domain.Notification),
		done: make(chan struct{}),
	}
	hub.Bind(scope, c)
	c.close()

	done := make(chan struct{})
	go func() {
		hub.deliver(c, notificationFor(scope))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("delivery to closed client did not return promptly")
	}
}

func TestHubUnbindReleasesClient(t *testing.T) {
	hub := newTestHub(t, DefaultSendTimeout)

	scope := domain.ScopeForUser(uuid.New())
	c := newTestClient()
	hub.Bind(scope, c)

	hub.Unbind(c)

	assert.Empty(t, hub.Registry().Lookup(scope))

	select {
	case <-c.done:
	default:
		t.Fatal("unbind did not close the client done channel")
	}

	// Unbind after disconnect must stay idempotent.
	hub.Unbind(c)
}

func TestHubPublishNeverBlocks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// Not running the hub loop: the buffer fills and overflow is dropped.
	hub := NewHub(NewRegistry(), DefaultSendTimeout, logger)

	scope := domain.ScopeForUser(uuid.New())
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(notificationFor(scope))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked the producer")
	}

	require.NotNil(t, hub)
}
