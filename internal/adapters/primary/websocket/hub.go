package websocket

import (
	"log/slog"
	"time"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
	"github.com/fidelitytrust/notification-service/internal/core/ports"
)

// DefaultSendTimeout bounds how long the write pump may spend pushing one
// notification to a slow connection before the write is abandoned.
const DefaultSendTimeout = 250 * time.Millisecond

// Hub fans stored notifications out to the live connections bound to the
// target scope. Push is a best-effort accelerator over the durable store:
// an absent or unhealthy connection is logged and skipped, never surfaced
// to the publisher, because the next pull recovers the notification anyway.
type Hub struct {
	registry *Registry

	// publish buffers notifications from producers into the Run loop.
	publish chan *domain.Notification

	sendTimeout time.Duration
	quit        chan struct{}
	logger      *slog.Logger
}

// Ensure Hub implements the NotificationPublisher interface.
var _ ports.NotificationPublisher = (*Hub)(nil)

// NewHub creates a new fan-out hub over the given presence registry.
func NewHub(registry *Registry, sendTimeout time.Duration, logger *slog.Logger) *Hub {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Hub{
		registry:    registry,
		publish:     make(chan *domain.Notification, 256),
		sendTimeout: sendTimeout,
		quit:        make(chan struct{}),
		logger:      logger.With("component", "websocket_hub"),
	}
}

// Registry exposes the hub's presence registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Publish enqueues a notification for fan-out. It never blocks the caller;
// if the buffer is full the push is dropped and recovered by the next pull.
func (h *Hub) Publish(n *domain.Notification) {
	select {
	case h.publish <- n:
	default:
		h.logger.Warn("publish buffer full, dropping push",
			"notification_id", n.ID,
			"scope", n.Scope,
		)
	}
}

// Run starts the hub's fan-out loop. This MUST be run as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case n := <-h.publish:
			h.fanOut(n)
		case <-h.quit:
			return
		}
	}
}

// Stop terminates the Run loop.
func (h *Hub) Stop() {
	close(h.quit)
}

// fanOut resolves the delivery targets and pushes to each one. Delivery
// happens inline on the run loop: the loop is the single writer into each
// connection's buffered send channel, so pushes to one scope reach the
// write pump in creation order. Per-channel failures stay isolated because
// the send never blocks.
func (h *Hub) fanOut(n *domain.Notification) {
	targets := h.registry.Lookup(n.Scope)
	if len(targets) == 0 {
		// Presence miss: stored only, delivered on next pull.
		h.logger.Debug("no live connections for scope",
			"scope", n.Scope,
			"notification_id", n.ID,
		)
		return
	}

	h.logger.Debug("fanning out notification",
		"notification_id", n.ID,
		"scope", n.Scope,
		"target_count", len(targets),
	)

	for _, client := range targets {
		h.deliver(client, n)
	}
}

// deliver pushes one notification into one connection's send buffer. A full
// buffer means the connection is not draining; the push is dropped and the
// notification is recovered by the next pull. The connection is presumed
// unhealthy but not disconnected here; only the transport layer drives
// disconnects.
func (h *Hub) deliver(c *Client, n *domain.Notification) {
	select {
	case c.send <- n:
	case <-c.done:
	default:
		h.logger.Warn("send buffer full, dropping push",
			"notification_id", n.ID,
			"scope", n.Scope,
		)
	}
}

// Bind attaches a connection to a scope in the presence registry.
func (h *Hub) Bind(scope domain.RecipientScope, c *Client) {
	h.registry.Bind(scope, c)
	h.logger.Info("client joined",
		"scope", scope,
		"group", c.group,
	)
}

// Unbind removes the connection from the registry and releases its
// outbound pump. Called exactly once per connection, on disconnect.
func (h *Hub) Unbind(c *Client) {
	h.registry.Unbind(c)
	c.close()
	h.logger.Info("client disconnected", "group", c.group)
}
