package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
)

// Scope selects which notification list a client consumes.
type Scope string

const (
	// ScopeUser is the authenticated user's own list.
	ScopeUser Scope = "user"
	// ScopeAdmin is the shared admin-broadcast list.
	ScopeAdmin Scope = "admin"
)

// namespace maps a scope to its websocket namespace path segment.
func (s Scope) namespace() string {
	if s == ScopeAdmin {
		return "admin-notifications"
	}
	return "user-notifications"
}

// Client keeps a Feed synchronized with the notification service. Pulls
// seed the feed, the websocket stream prepends into it, and mark-read is
// optimistic: the local flip happens before the request and is never
// rolled back, because the server treats unknown ids as a no-op.
type Client struct {
	baseURL    string
	token      string
	userID     string
	scope      Scope
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	feed       *Feed
	logger     *slog.Logger

	// connMu guards conn and serializes writes to it. conn is non-nil only
	// while Listen holds an open stream.
	connMu sync.Mutex
	conn   *websocket.Conn
}

// Options configures a Client.
type Options struct {
	// BaseURL is the service root, e.g. "https://api.example.com".
	BaseURL string
	// Token is the bearer token; it also authenticates the websocket.
	Token string
	// UserID is sent in the join message on the user namespace.
	UserID string
	// Scope picks the user or admin list. Defaults to ScopeUser.
	Scope Scope
	// HTTPClient is used for pulls. Defaults to a 10s-timeout client.
	HTTPClient *http.Client
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewClient creates a feed client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scope := opts.Scope
	if scope == "" {
		scope = ScopeUser
	}

	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		userID:     opts.UserID,
		scope:      scope,
		httpClient: httpClient,
		feed:       New(),
		logger:     logger.With("component", "feed_client"),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notification-api",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c
}

// Feed returns the client's feed.
func (c *Client) Feed() *Feed {
	return c.feed
}

// listEnvelope mirrors the pull API's list response.
type listEnvelope struct {
	Data  []Notification `json:"data"`
	Count int            `json:"count"`
}

// Sync pulls the newest notifications and seeds the feed with them. The
// snapshot wins over any locally held list; pending read marks survive.
func (c *Client) Sync(ctx context.Context) error {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("list notifications: unexpected status %d", resp.StatusCode)
		}

		var envelope listEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return nil, fmt.Errorf("decode notification list: %w", err)
		}
		return envelope.Data, nil
	})
	if err != nil {
		return err
	}

	c.feed.Seed(result.([]Notification))
	return nil
}

// MarkRead flips the ids read locally, then persists the change. The
// local flip is not rolled back on failure; a later Sync reconciles.
func (c *Client) MarkRead(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}

	c.feed.MarkRead(ids...)

	payload, _ := json.Marshal(map[string][]string{"notificationIds": ids})

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.listURL()+"/mark-read", strings.NewReader(string(payload)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("mark read: unexpected status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		c.logger.Warn("failed to persist mark read, keeping optimistic state",
			"ids", ids,
			"error", err,
		)
	}

	c.notifyStream(ids)
}

// notifyStream relays the read acknowledgement over the live channel so the
// server sees it even if the durable POST is delayed. Best-effort: no open
// stream or a failed write is ignored.
func (c *Client) notifyStream(ids []string) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return
	}

	payload, _ := json.Marshal(map[string][]string{"notificationIds": ids})
	msg := clientMessage{Type: "mark_read", Payload: payload}

	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("failed to relay mark read on stream", "error", err)
	}
}

// wire envelopes for the websocket stream.

type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type serverMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Listen connects to the websocket namespace for the client's scope,
// joins, and merges pushed notifications into the feed until the context
// is cancelled or the connection drops. Callers reconnect by calling
// Listen again, then Sync to close any gap.
func (c *Client) Listen(ctx context.Context) error {
	wsURL, err := c.websocketURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial notification stream: %w", err)
	}
	defer conn.Close()

	if err := c.join(conn); err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	defer func() {
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
	}()

	// Unblock the read loop when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read notification stream: %w", err)
		}

		if msg.Type != "new_notification" {
			continue
		}

		var n Notification
		if err := json.Unmarshal(msg.Payload, &n); err != nil {
			c.logger.Warn("dropping malformed push", "error", err)
			continue
		}

		if c.feed.Prepend(n) {
			c.logger.Debug("received notification", "id", n.ID, "title", n.Title)
		}
	}
}

// join binds the connection to the client's scope.
func (c *Client) join(conn *websocket.Conn) error {
	msg := clientMessage{Type: "join"}

	if c.scope == ScopeUser {
		payload, err := json.Marshal(map[string]string{"userId": c.userID})
		if err != nil {
			return err
		}
		msg.Payload = payload
	}

	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send join: %w", err)
	}
	return nil
}

// listURL builds the pull endpoint for the client's scope.
func (c *Client) listURL() string {
	return c.baseURL + "/api/v1/notifications/" + string(c.scope)
}

// websocketURL builds the stream endpoint with the token attached.
func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/ws/" + c.scope.namespace()
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
