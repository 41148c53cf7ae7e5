package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
	"github.com/fidelitytrust/notification-service/internal/core/ports"
)

// DefaultPageSize caps ListForRecipient when the caller does not specify a
// limit; MaxPageSize bounds it either way to avoid unbounded scans.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// NotificationService implements the business logic of the notification
// store: durable creation, scoped reads, idempotent read-state transitions,
// and handing stored notifications to the live publisher.
type NotificationService struct {
	repo      ports.NotificationRepository
	txManager ports.TransactionManager
	publisher ports.NotificationPublisher
	logger    *slog.Logger
}

var _ ports.NotificationService = (*NotificationService)(nil)

// NewNotificationService creates a new notification service.
func NewNotificationService(
	repo ports.NotificationRepository,
	txManager ports.TransactionManager,
	publisher ports.NotificationPublisher,
	logger *slog.Logger,
) ports.NotificationService {
	return &NotificationService{
		repo:      repo,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With("component", "notification_service"),
	}
}

// Create stores a notification and publishes it to live channels.
// If persistence fails the error is returned and no fan-out happens:
// there is no event to deliver.
func (s *NotificationService) Create(ctx context.Context, params ports.CreateNotificationParams) (*domain.Notification, error) {
	n, err := domain.NewNotification(params.Scope, params.Kind, params.Title, params.Body, params.Metadata)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Create(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}

	s.publisher.Publish(stored)
	return stored, nil
}

// CreateTransactionNotification stores the user-scoped and admin-broadcast
// notifications for a completed transaction in one database transaction,
// then publishes both. Publishing happens only after the commit so a
// rollback can never leave a pushed-but-unstored notification behind.
func (s *NotificationService) CreateTransactionNotification(ctx context.Context, userID uuid.UUID, tx domain.TransactionDescriptor) (*domain.Notification, error) {
	metadata, err := json.Marshal(map[string]any{
		"transactionId": tx.TransactionID,
		"type":          string(tx.Type),
		"amount":        tx.Amount,
		"currency":      tx.Currency,
		"status":        tx.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal transaction metadata: %w", err)
	}

	userTitle, userBody := tx.UserMessage()
	userNotification, err := domain.NewNotification(domain.ScopeForUser(userID), domain.KindTransaction, userTitle, userBody, metadata)
	if err != nil {
		return nil, err
	}

	adminTitle, adminBody := tx.AdminMessage()
	adminNotification, err := domain.NewNotification(domain.AdminBroadcast, domain.KindTransaction, adminTitle, adminBody, metadata)
	if err != nil {
		return nil, err
	}

	var storedUser, storedAdmin *domain.Notification
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var txErr error
		if storedUser, txErr = s.repo.Create(ctx, userNotification); txErr != nil {
			return txErr
		}
		storedAdmin, txErr = s.repo.Create(ctx, adminNotification)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("store transaction notifications: %w", err)
	}

	s.publisher.Publish(storedUser)
	s.publisher.Publish(storedAdmin)

	s.logger.Info("transaction notifications created",
		"user_id", userID,
		"transaction_id", tx.TransactionID,
		"transaction_type", tx.Type,
	)

	return storedUser, nil
}

// ListForRecipient returns the newest notifications for the scope,
// bounded to MaxPageSize.
func (s *NotificationService) ListForRecipient(ctx context.Context, scope domain.RecipientScope, limit int) ([]*domain.Notification, error) {
	if scope == "" {
		return nil, domain.ErrScopeRequired
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.repo.ListByScope(ctx, scope, limit)
}

// MarkRead marks the given ids read within the scope. Ids that are unknown,
// already read, or outside the scope are ignored, so the returned count may
// be lower than the number of ids requested.
func (s *NotificationService) MarkRead(ctx context.Context, params ports.MarkReadParams) (int64, error) {
	if params.Scope == "" {
		return 0, domain.ErrScopeRequired
	}
	if len(params.IDs) == 0 {
		return 0, nil
	}
	return s.repo.MarkRead(ctx, params.Scope, params.IDs)
}

// MarkAllRead marks every unread notification in the scope.
func (s *NotificationService) MarkAllRead(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	if scope == "" {
		return 0, domain.ErrScopeRequired
	}
	return s.repo.MarkAllRead(ctx, scope)
}

// UnreadCount returns the authoritative unread count for the scope.
func (s *NotificationService) UnreadCount(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	if scope == "" {
		return 0, domain.ErrScopeRequired
	}
	return s.repo.CountUnread(ctx, scope)
}

// Delete removes one notification from the scope.
func (s *NotificationService) Delete(ctx context.Context, scope domain.RecipientScope, id uuid.UUID) error {
	if scope == "" {
		return domain.ErrScopeRequired
	}
	return s.repo.Delete(ctx, scope, id)
}

// DeleteAllForRecipient clears the scope.
func (s *NotificationService) DeleteAllForRecipient(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	if scope == "" {
		return 0, domain.ErrScopeRequired
	}
	return s.repo.DeleteByScope(ctx, scope)
}
