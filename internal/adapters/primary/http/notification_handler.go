package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/fidelitytrust/notification-service/internal/adapters/primary/http/middleware"
	"github.com/fidelitytrust/notification-service/internal/adapters/primary/validation"
	"github.com/fidelitytrust/notification-service/internal/auth"
	"github.com/fidelitytrust/notification-service/internal/core/domain"
	apperrors "github.com/fidelitytrust/notification-service/internal/core/errors"
	"github.com/fidelitytrust/notification-service/internal/core/ports"
)

const maxNotificationsPerPage = 100

// NotificationHandler handles HTTP requests for the notification store.
// User routes operate on the caller's own scope; admin routes operate on
// the shared admin-broadcast scope.
type NotificationHandler struct {
	service      ports.NotificationService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(
	service ports.NotificationService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		service:      service,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "notification"),
	}
}

// RegisterUserRoutes sets up the routes that read and mutate the
// authenticated user's own notifications.
func (h *NotificationHandler) RegisterUserRoutes(r chi.Router) {
	r.Get("/", h.HandleListUser)
	r.Get("/unread-count", h.HandleUnreadCountUser)
	r.Post("/mark-read", h.HandleMarkReadUser)
	r.Post("/mark-all-read", h.HandleMarkAllReadUser)
	r.Delete("/", h.HandleDeleteAllUser)
	r.Delete("/{notificationID}", h.HandleDeleteUser)
}

// RegisterAdminRoutes sets up the admin-broadcast routes. The caller is
// expected to have passed the admin role middleware already.
func (h *NotificationHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/", h.HandleListAdmin)
	r.Get("/unread-count", h.HandleUnreadCountAdmin)
	r.Post("/mark-read", h.HandleMarkReadAdmin)
	r.Post("/mark-all-read", h.HandleMarkAllReadAdmin)
	r.Delete("/", h.HandleDeleteAllAdmin)
	r.Delete("/{notificationID}", h.HandleDeleteAdmin)
}

// --- Request/Response DTOs ---

// MarkReadRequest defines the expected JSON body for marking notifications read
type MarkReadRequest struct {
	NotificationIDs []string `json:"notificationIds"`
}

// Validate validates the mark read request
func (r *MarkReadRequest) Validate() error {
	v := validation.NewValidator()

	v.Custom("notificationIds", len(r.NotificationIDs) > 0, "At least one notification id is required")
	for _, id := range r.NotificationIDs {
		v.UUID("notificationIds", id)
	}

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// MarkedResponse reports how many rows a read-state transition touched.
type MarkedResponse struct {
	Marked int64 `json:"marked"`
}

// DeletedResponse reports how many rows a bulk delete removed.
type DeletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// NotificationDTO defines the JSON response for notifications.
type NotificationDTO struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Title     string          `json:"title"`
	Body      string          `json:"body,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	IsRead    bool            `json:"isRead"`
	CreatedAt string          `json:"createdAt"`
}

func toNotificationDTO(n *domain.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID.String(),
		Kind:      string(n.Kind),
		Title:     n.Title,
		Body:      n.Body,
		Metadata:  n.Metadata,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toNotificationDTOs(notifications []*domain.Notification) []NotificationDTO {
	dtos := make([]NotificationDTO, 0, len(notifications))
	for _, n := range notifications {
		dtos = append(dtos, toNotificationDTO(n))
	}
	return dtos
}

// --- User routes ---

// HandleListUser handles GET /notifications/user.
func (h *NotificationHandler) HandleListUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}
	h.list(w, r, domain.ScopeForUser(claims.UserID))
}

// HandleUnreadCountUser handles GET /notifications/user/unread-count.
func (h *NotificationHandler) HandleUnreadCountUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}
	h.unreadCount(w, r, domain.ScopeForUser(claims.UserID))
}

// HandleMarkReadUser handles POST /notifications/user/mark-read.
func (h *NotificationHandler) HandleMarkReadUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}
	h.markRead(w, r, domain.ScopeForUser(claims.UserID))
}

// HandleMarkAllReadUser handles POST /notifications/user/mark-all-read.
func (h *NotificationHandler) HandleMarkAllReadUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}
	h.markAllRead(w, r, domain.ScopeForUser(claims.UserID))
}

// HandleDeleteUser handles DELETE /notifications/user/{notificationID}.
func (h *NotificationHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}
	h.deleteOne(w, r, domain.ScopeForUser(claims.UserID))
}

// HandleDeleteAllUser handles DELETE /notifications/user.
func (h *NotificationHandler) HandleDeleteAllUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}
	h.deleteAll(w, r, domain.ScopeForUser(claims.UserID))
}

// --- Admin routes ---

// HandleListAdmin handles GET /notifications/admin.
func (h *NotificationHandler) HandleListAdmin(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.AdminBroadcast)
}

// HandleUnreadCountAdmin handles GET /notifications/admin/unread-count.
func (h *NotificationHandler) HandleUnreadCountAdmin(w http.ResponseWriter, r *http.Request) {
	h.unreadCount(w, r, domain.AdminBroadcast)
}

// HandleMarkReadAdmin handles POST /notifications/admin/mark-read.
func (h *NotificationHandler) HandleMarkReadAdmin(w http.ResponseWriter, r *http.Request) {
	h.markRead(w, r, domain.AdminBroadcast)
}

// HandleMarkAllReadAdmin handles POST /notifications/admin/mark-all-read.
func (h *NotificationHandler) HandleMarkAllReadAdmin(w http.ResponseWriter, r *http.Request) {
	h.markAllRead(w, r, domain.AdminBroadcast)
}

// HandleDeleteAdmin handles DELETE /notifications/admin/{notificationID}.
func (h *NotificationHandler) HandleDeleteAdmin(w http.ResponseWriter, r *http.Request) {
	h.deleteOne(w, r, domain.AdminBroadcast)
}

// HandleDeleteAllAdmin handles DELETE /notifications/admin.
func (h *NotificationHandler) HandleDeleteAllAdmin(w http.ResponseWriter, r *http.Request) {
	h.deleteAll(w, r, domain.AdminBroadcast)
}

// --- Shared scope-parameterized implementations ---

func (h *NotificationHandler) list(w http.ResponseWriter, r *http.Request, scope domain.RecipientScope) {
	limit := validation.ParseIntQueryParam(r, "limit", 0)
	if limit > maxNotificationsPerPage {
		limit = maxNotificationsPerPage
	}

	notifications, err := h.service.ListForRecipient(r.Context(), scope, limit)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, toNotificationDTOs(notifications))
}

func (h *NotificationHandler) unreadCount(w http.ResponseWriter, r *http.Request, scope domain.RecipientScope) {
	count, err := h.service.UnreadCount(r.Context(), scope)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (h *NotificationHandler) markRead(w http.ResponseWriter, r *http.Request, scope domain.RecipientScope) {
	req, err := validation.DecodeAndValidate[MarkReadRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.NotificationIDs))
	for _, raw := range req.NotificationIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid notification id"))
			return
		}
		ids = append(ids, id)
	}

	marked, err := h.service.MarkRead(r.Context(), ports.MarkReadParams{
		Scope: scope,
		IDs:   ids,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, MarkedResponse{Marked: marked})
}

func (h *NotificationHandler) markAllRead(w http.ResponseWriter, r *http.Request, scope domain.RecipientScope) {
	marked, err := h.service.MarkAllRead(r.Context(), scope)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, MarkedResponse{Marked: marked})
}

func (h *NotificationHandler) deleteOne(w http.ResponseWriter, r *http.Request, scope domain.RecipientScope) {
	idStr := chi.URLParam(r, "notificationID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid notification id"))
		return
	}

	if err := h.service.Delete(r.Context(), scope, id); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteNoContent(w)
}

func (h *NotificationHandler) deleteAll(w http.ResponseWriter, r *http.Request, scope domain.RecipientScope) {
	deleted, err := h.service.DeleteAllForRecipient(r.Context(), scope)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, DeletedResponse{Deleted: deleted})
}

// getClaims extracts and validates user claims from the request context.
func (h *NotificationHandler) getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := mw.GetClaims(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Not authorized",
			Code:  "UNAUTHORIZED",
		})
		return nil, false
	}
	return claims, true
}
