package ports

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
)

// CreateNotificationParams defines the input for creating a notification.
type CreateNotificationParams struct {
	Scope    domain.RecipientScope
	Kind     domain.Kind
	Title    string
	Body     string
	Metadata json.RawMessage
}

// MarkReadParams defines the input for marking notifications read.
type MarkReadParams struct {
	Scope domain.RecipientScope
	IDs   []uuid.UUID
}

// NotificationService defines the core business operations of the
// notification store: creation with fan-out, scoped reads, and the
// idempotent read-state transitions.
type NotificationService interface {
	// Create stores a notification and, only on successful persistence,
	// hands it to the publisher. A storage error aborts fan-out entirely.
	Create(ctx context.Context, params CreateNotificationParams) (*domain.Notification, error)

	// CreateTransactionNotification synthesizes and stores two notifications
	// for a completed transaction - one for the user, one for the admin
	// group - atomically, then publishes both. The user-scoped notification
	// is returned.
	CreateTransactionNotification(ctx context.Context, userID uuid.UUID, tx domain.TransactionDescriptor) (*domain.Notification, error)

	// ListForRecipient returns the newest notifications for the scope.
	ListForRecipient(ctx context.Context, scope domain.RecipientScope, limit int) ([]*domain.Notification, error)

	// MarkRead is idempotent; unknown ids are ignored.
	MarkRead(ctx context.Context, params MarkReadParams) (int64, error)

	// MarkAllRead marks every unread notification in the scope.
	MarkAllRead(ctx context.Context, scope domain.RecipientScope) (int64, error)

	// UnreadCount returns the scope's unread count from the durable store.
	UnreadCount(ctx context.Context, scope domain.RecipientScope) (int64, error)

	// Delete removes one notification from the scope.
	Delete(ctx context.Context, scope domain.RecipientScope, id uuid.UUID) error

	// DeleteAllForRecipient clears the scope.
	DeleteAllForRecipient(ctx context.Context, scope domain.RecipientScope) (int64, error)
}

// NotificationPublisher is the port the service uses to push a freshly
// stored notification to live channels. Delivery is fire-and-forget: a
// missed push is recovered by the next pull, so implementations never
// surface per-channel failures to the caller.
type NotificationPublisher interface {
	Publish(n *domain.Notification)
}
