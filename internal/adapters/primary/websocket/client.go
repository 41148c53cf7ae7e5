package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
	"github.com/fidelitytrust/notification-service/internal/core/ports"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

// Group identifies which of the two transport namespaces a connection
// belongs to. A connection serves exactly one group for its lifetime.
type Group string

const (
	// GroupUser is the per-user namespace; join requires the user's id.
	GroupUser Group = "user-notifications"
	// GroupAdmin is the admin namespace; join always binds the
	// admin-broadcast scope.
	GroupAdmin Group = "admin-notifications"
)

// Client is the per-connection session handler. Its lifecycle is
// connected-unbound until a join message binds it to a scope, then bound
// until disconnect, which is terminal for the handle: a reconnecting
// client gets a fresh Client and must join again.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	service ports.NotificationService

	// send carries notifications from the hub to the write pump.
	send chan *domain.Notification

	// done is closed exactly once on disconnect; it releases the write
	// pump and any in-flight hub deliveries.
	done      chan struct{}
	closeOnce sync.Once

	group  Group
	userID uuid.UUID

	logger *slog.Logger
}

// NewClient creates a session handler for an upgraded connection. The user
// id comes from the verified token, never from the join payload alone.
func NewClient(
	hub *Hub,
	conn *websocket.Conn,
	service ports.NotificationService,
	group Group,
	userID uuid.UUID,
	logger *slog.Logger,
) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		service: service,
		send:    make(chan *domain.Notification, 64),
		done:    make(chan struct{}),
		group:   group,
		userID:  userID,
		logger:  logger.With("group", string(group), "user_id", userID.String()),
	}
}

// close releases the write pump exactly once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ReadPump pumps messages from the websocket connection to the session
// handler. This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unbind(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps notifications from the hub to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case n := <-c.send:
			// Notification writes get the hub's bounded send timeout, not
			// the generous control-message deadline: a connection that
			// cannot take a push within it is treated as failed.
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.sendTimeout)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if err := c.writeNotification(n); err != nil {
				c.logger.Error("failed to write notification", "error", err)
				return
			}

		case <-c.done:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
				c.logger.Debug("failed to send close message", "error", err)
			}
			return

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// writeNotification writes a new_notification message to the connection.
func (c *Client) writeNotification(n *domain.Notification) error {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	msg := ServerMessage{
		Type:    MessageNewNotification,
		Payload: toPushPayload(n),
	}
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// --- Wire messages ---

// Client → server message types.
const (
	MessageJoin     = "join"
	MessageMarkRead = "mark_read"
)

// MessageNewNotification is the server → client push message type.
const MessageNewNotification = "new_notification"

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinPayload is the payload for join messages on the user namespace.
// The admin namespace sends join with no payload.
type JoinPayload struct {
	UserID string `json:"userId"`
}

// MarkReadPayload is the payload for mark_read messages.
type MarkReadPayload struct {
	NotificationIDs []string `json:"notificationIds"`
}

// ServerMessage is the envelope for messages pushed to the client.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// PushPayload is the wire shape of a pushed notification. It matches the
// JSON the pull API returns so clients merge both into one list.
type PushPayload struct {
	ID        string          `json:"id"`
	Scope     string          `json:"scope"`
	Kind      string          `json:"kind"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	IsRead    bool            `json:"isRead"`
	CreatedAt string          `json:"createdAt"`
}

func toPushPayload(n *domain.Notification) PushPayload {
	return PushPayload{
		ID:        n.ID.String(),
		Scope:     string(n.Scope),
		Kind:      string(n.Kind),
		Title:     n.Title,
		Body:      n.Body,
		Metadata:  n.Metadata,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// --- Incoming message handling ---

// handleIncomingMessage processes messages received from the client.
func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Type {
	case MessageJoin:
		c.handleJoin(msg.Payload)

	case MessageMarkRead:
		c.handleMarkRead(msg.Payload)

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

// handleJoin binds the connection to its scope. On the user namespace the
// payload's userId must match the authenticated user; on the admin
// namespace join takes no argument and always binds admin-broadcast.
// A second join rebinds, which first removes the old binding.
func (c *Client) handleJoin(payload json.RawMessage) {
	switch c.group {
	case GroupAdmin:
		c.hub.Bind(domain.AdminBroadcast, c)

	case GroupUser:
		var p JoinPayload
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &p); err != nil {
				c.logger.Warn("failed to unmarshal join payload", "error", err)
				return
			}
		}
		if p.UserID != "" && p.UserID != c.userID.String() {
			c.logger.Warn("join rejected: user id does not match token",
				"requested_user_id", p.UserID,
			)
			return
		}
		c.hub.Bind(domain.ScopeForUser(c.userID), c)
	}
}

// handleMarkRead relays a read acknowledgement to the durable store. Ids
// the scope does not own are no-ops there; failures are logged and never
// fatal to the connection.
func (c *Client) handleMarkRead(payload json.RawMessage) {
	var p MarkReadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal mark_read payload", "error", err)
		return
	}

	scope, ok := c.hub.Registry().ScopeOf(c)
	if !ok {
		c.logger.Warn("mark_read before join, ignoring")
		return
	}

	ids := make([]uuid.UUID, 0, len(p.NotificationIDs))
	for _, raw := range p.NotificationIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			// Unknown ids are tolerated everywhere else too.
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}

	// The originating request is long gone; the connection is the caller.
	updated, err := c.service.MarkRead(context.Background(), ports.MarkReadParams{
		Scope: scope,
		IDs:   ids,
	})
	if err != nil {
		c.logger.Error("mark_read relay failed", "error", err)
		return
	}

	c.logger.Debug("mark_read relayed",
		"requested", len(ids),
		"updated", updated,
	)
}
