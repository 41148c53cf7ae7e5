package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
)

// NotificationRepository is the port for durable notification persistence.
// It is the single source of truth: the live push channel is only a
// best-effort accelerator on top of it.
type NotificationRepository interface {
	// Create inserts a new unread notification and returns it with ID, Seq
	// and CreatedAt assigned by the store.
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)

	// ListByScope returns the newest notifications for a scope, ordered by
	// created_at descending (ties broken by insertion sequence), capped at limit.
	ListByScope(ctx context.Context, scope domain.RecipientScope, limit int) ([]*domain.Notification, error)

	// MarkRead flips is_read to true for the given ids within the scope and
	// returns the number of rows updated. Already-read, unknown and
	// out-of-scope ids are silent no-ops.
	MarkRead(ctx context.Context, scope domain.RecipientScope, ids []uuid.UUID) (int64, error)

	// MarkAllRead flips every unread notification in the scope.
	MarkAllRead(ctx context.Context, scope domain.RecipientScope) (int64, error)

	// CountUnread returns the number of unread notifications in the scope,
	// always computed from the is_read flags.
	CountUnread(ctx context.Context, scope domain.RecipientScope) (int64, error)

	// Delete removes a single notification within the scope.
	Delete(ctx context.Context, scope domain.RecipientScope, id uuid.UUID) error

	// DeleteByScope removes every notification in the scope and returns the
	// number of rows deleted.
	DeleteByScope(ctx context.Context, scope domain.RecipientScope) (int64, error)
}

// TransactionManager defines the port for running atomic operations.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
