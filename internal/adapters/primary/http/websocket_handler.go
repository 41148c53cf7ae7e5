package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	wsAdapter "github.com/fidelitytrust/notification-service/internal/adapters/primary/websocket"
	"github.com/fidelitytrust/notification-service/internal/auth"
	"github.com/fidelitytrust/notification-service/internal/config"
	"github.com/fidelitytrust/notification-service/internal/core/ports"
)

// WebSocketHandler upgrades connections into the two notification
// namespaces. The user namespace serves any authenticated user; the admin
// namespace requires the admin role at upgrade time.
type WebSocketHandler struct {
	hub      *wsAdapter.Hub
	service  ports.NotificationService
	tm       *auth.TokenManager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *wsAdapter.Hub,
	service ports.NotificationService,
	tm *auth.TokenManager,
	cfg *config.Config,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:     hub,
		service: service,
		tm:      tm,
		logger:  logger.With("handler", "websocket"),
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg),
	}

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker(cfg *config.Config) func(r *http.Request) bool {
	allowedOrigins := cfg.WebSocket.AllowedOrigins

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// In development mode, allow all origins (but log a warning)
		if cfg.IsDevelopment() {
			if origin != "" {
				h.logger.Warn("allowing websocket connection in development mode",
					"origin", origin,
					"remote_addr", r.RemoteAddr,
				)
			}
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		// Check against allowed origins
		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin",
				"origin", origin,
				"error", err,
			)
			return false
		}

		originHost := parsedOrigin.Host

		for _, allowed := range allowedOrigins {
			// Support wildcard subdomains like "*.example.com"
			if strings.HasPrefix(allowed, "*.") {
				suffix := allowed[1:] // Remove the "*", keep ".example.com"
				if strings.HasSuffix(originHost, suffix) || originHost == allowed[2:] {
					return true
				}
			} else if originHost == allowed {
				return true
			}
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
			"allowed_origins", allowedOrigins,
		)
		return false
	}
}

// HandleUserNamespace handles GET /ws/user-notifications.
func (h *WebSocketHandler) HandleUserNamespace(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, wsAdapter.GroupUser)
}

// HandleAdminNamespace handles GET /ws/admin-notifications.
func (h *WebSocketHandler) HandleAdminNamespace(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, wsAdapter.GroupAdmin)
}

// serve authenticates, upgrades, and starts the session handler for one
// connection.
func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, group wsAdapter.Group) {
	requestID := GetRequestID(r.Context())

	// Browsers cannot set custom headers on websocket requests, so the
	// token travels as a query parameter.
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		h.logger.Warn("websocket connection rejected: missing token",
			"request_id", requestID,
			"remote_addr", r.RemoteAddr,
		)
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tm.ValidateToken(tokenString)
	if err != nil {
		h.logger.Warn("websocket connection rejected: invalid token",
			"request_id", requestID,
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	if group == wsAdapter.GroupAdmin && !claims.IsAdmin() {
		h.logger.Warn("websocket connection rejected: admin role required",
			"request_id", requestID,
			"user_id", claims.UserID,
		)
		http.Error(w, "Admin role required", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection",
			"request_id", requestID,
			"user_id", claims.UserID,
			"error", err,
		)
		return
	}

	h.logger.Info("websocket connection established",
		"request_id", requestID,
		"user_id", claims.UserID,
		"group", string(group),
		"remote_addr", r.RemoteAddr,
	)

	client := wsAdapter.NewClient(h.hub, conn, h.service, group, claims.UserID, h.logger)

	// Start the I/O pumps in new goroutines. The connection stays
	// unbound until the client sends a join message.
	go client.WritePump()
	go client.ReadPump()
}
