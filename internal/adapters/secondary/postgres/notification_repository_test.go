package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
	apperrors "github.com/fidelitytrust/notification-service/internal/core/errors"
)

func mustCreate(t *testing.T, scope domain.RecipientScope, kind domain.Kind, title string) *domain.Notification {
	t.Helper()

	repo := NewNotificationRepository(testPool)
	n, err := domain.NewNotification(scope, kind, title, "body", json.RawMessage(`{"source":"test"}`))
	require.NoError(t, err)

	stored, err := repo.Create(context.Background(), n)
	require.NoError(t, err)
	return stored
}

func TestNotificationRepository_Create(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	scope := domain.ScopeForUser(uuid.New())
	n, err := domain.NewNotification(scope, domain.KindTransaction, "Deposit Completed", "Your deposit settled.", json.RawMessage(`{"amount":100}`))
	require.NoError(t, err)

	stored, err := repo.Create(ctx, n)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, stored.ID)
	assert.Positive(t, stored.Seq)
	assert.Equal(t, scope, stored.Scope)
	assert.Equal(t, domain.KindTransaction, stored.Kind)
	assert.Equal(t, "Deposit Completed", stored.Title)
	assert.Equal(t, "Your deposit settled.", stored.Body)
	assert.JSONEq(t, `{"amount":100}`, string(stored.Metadata))
	assert.False(t, stored.IsRead)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestNotificationRepository_ListByScope_OrderAndLimit(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	scope := domain.ScopeForUser(uuid.New())

	first := mustCreate(t, scope, domain.KindSystem, "first")
	second := mustCreate(t, scope, domain.KindSystem, "second")
	third := mustCreate(t, scope, domain.KindSystem, "third")

	list, err := repo.ListByScope(ctx, scope, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)

	// Newest first; equal timestamps are broken by insertion order.
	assert.Equal(t, third.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, first.ID, list[2].ID)

	limited, err := repo.ListByScope(ctx, scope, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, third.ID, limited[0].ID)
}

func TestNotificationRepository_ListByScope_Isolation(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	scopeA := domain.ScopeForUser(uuid.New())
	scopeB := domain.ScopeForUser(uuid.New())

	mustCreate(t, scopeA, domain.KindSystem, "for A")
	mustCreate(t, scopeB, domain.KindSystem, "for B")
	mustCreate(t, domain.AdminBroadcast, domain.KindTransaction, "for admins")

	listA, err := repo.ListByScope(ctx, scopeA, 10)
	require.NoError(t, err)
	require.Len(t, listA, 1)
	assert.Equal(t, "for A", listA[0].Title)

	admins, err := repo.ListByScope(ctx, domain.AdminBroadcast, 10)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "for admins", admins[0].Title)
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	scope := domain.ScopeForUser(uuid.New())
	n1 := mustCreate(t, scope, domain.KindSystem, "one")
	n2 := mustCreate(t, scope, domain.KindSystem, "two")

	marked, err := repo.MarkRead(ctx, scope, []uuid.UUID{n1.ID, n2.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	// Idempotent: already-read ids do not match again.
	marked, err = repo.MarkRead(ctx, scope, []uuid.UUID{n1.ID, n2.ID})
	require.NoError(t, err)
	assert.Zero(t, marked)

	list, err := repo.ListByScope(ctx, scope, 10)
	require.NoError(t, err)
	for _, n := range list {
		assert.True(t, n.IsRead)
	}
}

func TestNotificationRepository_MarkRead_UnknownAndForeignIDs(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	scope := domain.ScopeForUser(uuid.New())
	otherScope := domain.ScopeForUser(uuid.New())
	mine := mustCreate(t, scope, domain.KindSystem, "mine")
	foreign := mustCreate(t, otherScope, domain.KindSystem, "foreign")

	// Unknown and foreign ids are silently ignored.
	marked, err := repo.MarkRead(ctx, scope, []uuid.UUID{mine.ID, foreign.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	// The foreign notification is untouched.
	foreignList, err := repo.ListByScope(ctx, otherScope, 10)
	require.NoError(t, err)
	require.Len(t, foreignList, 1)
	assert.False(t, foreignList[0].IsRead)
}

func TestNotificationRepository_MarkRead_EmptyIDs(t *testing.T) {
	truncateNotifications(t)
	repo := NewNotificationRepository(testPool)

	marked, err := repo.MarkRead(context.Background(), domain.AdminBroadcast, nil)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestNotificationRepository_MarkAllRead(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	scope := domain.ScopeForUser(uuid.New())
	mustCreate(t, scope, domain.KindSystem, "one")
	mustCreate(t, scope, domain.KindSystem, "two")
	mustCreate(t, domain.AdminBroadcast, domain.KindSystem, "elsewhere")

	marked, err := repo.MarkAllRead(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	count, err := repo.CountUnread(ctx, scope)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The other scope keeps its unread notification.
	count, err = repo.CountUnread(ctx, domain.AdminBroadcast)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNotificationRepository_CountUnread(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	scope := domain.ScopeForUser(uuid.New())

	count, err := repo.CountUnread(ctx, scope)
	require.NoError(t, err)
	assert.Zero(t, count)

	n1 := mustCreate(t, scope, domain.KindSystem, "one")
	mustCreate(t, scope, domain.KindSystem, "two")

	count, err = repo.CountUnread(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = repo.MarkRead(ctx, scope, []uuid.UUID{n1.ID})
	require.NoError(t, err)

	count, err = repo.CountUnread(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNotificationRepository_Delete(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	scope := domain.ScopeForUser(uuid.New())
	n := mustCreate(t, scope, domain.KindSystem, "to delete")

	require.NoError(t, repo.Delete(ctx, scope, n.ID))

	list, err := repo.ListByScope(ctx, scope, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	// Deleting again reports not found.
	err = repo.Delete(ctx, scope, n.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)
}

func TestNotificationRepository_Delete_WrongScope(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	scope := domain.ScopeForUser(uuid.New())
	n := mustCreate(t, scope, domain.KindSystem, "keep")

	err := repo.Delete(ctx, domain.ScopeForUser(uuid.New()), n.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)

	list, err := repo.ListByScope(ctx, scope, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotificationRepository_DeleteByScope(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	scope := domain.ScopeForUser(uuid.New())
	mustCreate(t, scope, domain.KindSystem, "one")
	mustCreate(t, scope, domain.KindSystem, "two")
	mustCreate(t, domain.AdminBroadcast, domain.KindSystem, "stays")

	deleted, err := repo.DeleteByScope(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	admins, err := repo.ListByScope(ctx, domain.AdminBroadcast, 10)
	require.NoError(t, err)
	assert.Len(t, admins, 1)
}

func TestTransactionManager_RollsBackOnError(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)
	txManager := NewTransactionManager(testPool)

	scope := domain.ScopeForUser(uuid.New())

	err := txManager.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := domain.NewNotification(scope, domain.KindTransaction, "inside tx", "", nil)
		require.NoError(t, err)
		if _, err := repo.Create(ctx, n); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	// The insert inside the failed transaction is gone.
	list, err := repo.ListByScope(ctx, scope, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTransactionManager_CommitsBothWrites(t *testing.T) {
	truncateNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)
	txManager := NewTransactionManager(testPool)

	userScope := domain.ScopeForUser(uuid.New())

	err := txManager.WithTransaction(ctx, func(ctx context.Context) error {
		userN, err := domain.NewNotification(userScope, domain.KindTransaction, "Deposit Completed", "", nil)
		if err != nil {
			return err
		}
		if _, err := repo.Create(ctx, userN); err != nil {
			return err
		}

		adminN, err := domain.NewNotification(domain.AdminBroadcast, domain.KindTransaction, "New Deposit Transaction", "", nil)
		if err != nil {
			return err
		}
		_, err = repo.Create(ctx, adminN)
		return err
	})
	require.NoError(t, err)

	userList, err := repo.ListByScope(ctx, userScope, 10)
	require.NoError(t, err)
	assert.Len(t, userList, 1)

	adminList, err := repo.ListByScope(ctx, domain.AdminBroadcast, 10)
	require.NoError(t, err)
	require.NotEmpty(t, adminList)
	assert.Equal(t, "New Deposit Transaction", adminList[0].Title)
}
