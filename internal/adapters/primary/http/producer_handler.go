package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fidelitytrust/notification-service/internal/adapters/primary/validation"
	"github.com/fidelitytrust/notification-service/internal/core/domain"
	apperrors "github.com/fidelitytrust/notification-service/internal/core/errors"
	"github.com/fidelitytrust/notification-service/internal/core/ports"
)

// APIKeyHeader is the header domain services present on internal endpoints.
const APIKeyHeader = "X-API-Key"

// ProducerHandler handles the internal endpoints that other backend
// services call to emit notifications. These routes are authenticated by
// a shared API key, not by user tokens.
type ProducerHandler struct {
	service      ports.NotificationService
	apiKeyHash   []byte
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewProducerHandler creates a new producer handler. apiKeyHash is the
// bcrypt hash of the expected API key; an empty hash disables the routes.
func NewProducerHandler(
	service ports.NotificationService,
	apiKeyHash string,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *ProducerHandler {
	return &ProducerHandler{
		service:      service,
		apiKeyHash:   []byte(apiKeyHash),
		errorHandler: errorHandler,
		logger:       logger.With("handler", "producer"),
	}
}

// RegisterRoutes sets up the internal producer routes.
func (h *ProducerHandler) RegisterRoutes(r chi.Router) {
	r.Use(h.requireAPIKey)
	r.Post("/transaction-notifications", h.HandleCreateTransactionNotification)
	r.Post("/system-notifications", h.HandleCreateSystemNotification)
}

// requireAPIKey authenticates the calling service.
func (h *ProducerHandler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.apiKeyHash) == 0 {
			h.logger.Warn("producer endpoint called but no api key hash is configured",
				"path", r.URL.Path,
			)
			WriteJSON(w, http.StatusServiceUnavailable, ErrorResponse{
				Error: "Producer endpoints are not configured",
				Code:  "NOT_CONFIGURED",
			})
			return
		}

		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: "API key is required",
				Code:  "UNAUTHORIZED",
			})
			return
		}

		if err := bcrypt.CompareHashAndPassword(h.apiKeyHash, []byte(key)); err != nil {
			h.logger.Warn("producer endpoint rejected: invalid api key",
				"path", r.URL.Path,
				"client_ip", r.RemoteAddr,
			)
			WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: "Invalid API key",
				Code:  "UNAUTHORIZED",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// --- Request DTOs ---

// TransactionNotificationRequest describes a completed transaction for
// which the user and admin notifications are synthesized.
type TransactionNotificationRequest struct {
	UserID        string  `json:"userId"`
	TransactionID string  `json:"transactionId"`
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
}

// Validate validates the transaction notification request
func (r *TransactionNotificationRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("userId", r.UserID).
		UUID("userId", r.UserID)
	v.Required("transactionId", r.TransactionID).
		UUID("transactionId", r.TransactionID)
	v.Required("type", r.Type)
	v.Required("status", r.Status)
	v.Positive("amount", r.Amount)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// SystemNotificationRequest carries a pre-composed notification aimed at
// either one user or the admin group.
type SystemNotificationRequest struct {
	UserID    string          `json:"userId,omitempty"`
	Broadcast bool            `json:"broadcast,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Title     string          `json:"title"`
	Body      string          `json:"body,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Validate validates the system notification request
func (r *SystemNotificationRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("title", r.Title)
	v.Custom("userId", r.Broadcast || r.UserID != "", "Either userId or broadcast must be set")
	if r.UserID != "" {
		v.UUID("userId", r.UserID)
	}
	if r.Kind != "" {
		v.OneOf("kind", r.Kind, []string{
			string(domain.KindSystem),
			string(domain.KindAlert),
		})
	}

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// HandleCreateTransactionNotification handles POST /internal/transaction-notifications.
func (h *ProducerHandler) HandleCreateTransactionNotification(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[TransactionNotificationRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid user id"))
		return
	}

	transactionID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid transaction id"))
		return
	}

	notification, err := h.service.CreateTransactionNotification(r.Context(), userID, domain.TransactionDescriptor{
		TransactionID: transactionID,
		Type:          domain.TransactionType(req.Type),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        req.Status,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toNotificationDTO(notification))
}

// HandleCreateSystemNotification handles POST /internal/system-notifications.
func (h *ProducerHandler) HandleCreateSystemNotification(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[SystemNotificationRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	scope := domain.AdminBroadcast
	if !req.Broadcast {
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid user id"))
			return
		}
		scope = domain.ScopeForUser(userID)
	}

	kind := domain.KindSystem
	if req.Kind != "" {
		kind = domain.Kind(req.Kind)
	}

	notification, err := h.service.Create(r.Context(), ports.CreateNotificationParams{
		Scope:    scope,
		Kind:     kind,
		Title:    req.Title,
		Body:     req.Body,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toNotificationDTO(notification))
}
