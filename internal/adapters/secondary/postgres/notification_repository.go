package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
	apperrors "github.com/fidelitytrust/notification-service/internal/core/errors"
	"github.com/fidelitytrust/notification-service/internal/core/ports"
)

// NotificationRepository is the secondary adapter for notification
// persistence. Creation is append-only; the read flag is the only mutable
// column. Ordering is created_at descending with the insertion sequence as
// tie-break, so read-state changes never reorder a recipient's list.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// Ensure NotificationRepository implements the ports interface.
var _ ports.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(pool *pgxpool.Pool) ports.NotificationRepository {
	return &NotificationRepository{pool: pool}
}

const notificationColumns = `id, seq, recipient_scope, kind, title, body, metadata, is_read, created_at`

// scanNotification maps one row to the domain model.
func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		id        pgtype.UUID
		n         domain.Notification
		scope     string
		kind      string
		metadata  []byte
		createdAt pgtype.Timestamptz
	)

	err := row.Scan(&id, &n.Seq, &scope, &kind, &n.Title, &n.Body, &metadata, &n.IsRead, &createdAt)
	if err != nil {
		return nil, err
	}

	n.ID = uuid.UUID(id.Bytes)
	n.Scope = domain.RecipientScope(scope)
	n.Kind = domain.Kind(kind)
	n.Metadata = json.RawMessage(metadata)
	n.CreatedAt = createdAt.Time
	return &n, nil
}

// Create persists a new notification. ID, Seq and CreatedAt come back from
// the database so callers always hold the stored truth.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	q := GetDBTX(ctx, r.pool)

	row := q.QueryRow(ctx, `
		INSERT INTO notifications (recipient_scope, kind, title, body, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+notificationColumns,
		string(n.Scope), string(n.Kind), n.Title, n.Body, []byte(n.Metadata),
	)

	created, err := scanNotification(row)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return created, nil
}

// ListByScope retrieves the newest notifications for a scope, newest first.
func (r *NotificationRepository) ListByScope(ctx context.Context, scope domain.RecipientScope, limit int) ([]*domain.Notification, error) {
	q := GetDBTX(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_scope = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`,
		string(scope), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*domain.Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

// MarkRead marks the given ids read for the scope. The scope filter in the
// WHERE clause makes foreign ids unreachable; unknown and already-read ids
// simply do not match, so the call is idempotent and the updated count may
// be lower than the number of ids passed.
func (r *NotificationRepository) MarkRead(ctx context.Context, scope domain.RecipientScope, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := GetDBTX(ctx, r.pool)

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	tag, err := q.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE recipient_scope = $1
		  AND is_read = FALSE
		  AND id = ANY($2::uuid[])`,
		string(scope), idStrings,
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkAllRead marks every unread notification in the scope.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	q := GetDBTX(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE recipient_scope = $1
		  AND is_read = FALSE`,
		string(scope),
	)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountUnread computes the unread count from the is_read flags. There is no
// stored counter to drift.
func (r *NotificationRepository) CountUnread(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	q := GetDBTX(ctx, r.pool)

	var count int64
	err := q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM notifications
		WHERE recipient_scope = $1
		  AND is_read = FALSE`,
		string(scope),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// Delete removes one notification from the scope.
func (r *NotificationRepository) Delete(ctx context.Context, scope domain.RecipientScope, id uuid.UUID) error {
	q := GetDBTX(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		DELETE FROM notifications
		WHERE recipient_scope = $1
		  AND id = $2::uuid`,
		string(scope), id.String(),
	)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}

// DeleteByScope removes every notification in the scope.
func (r *NotificationRepository) DeleteByScope(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	q := GetDBTX(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		DELETE FROM notifications
		WHERE recipient_scope = $1`,
		string(scope),
	)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
