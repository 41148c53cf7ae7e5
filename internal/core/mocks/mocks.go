package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
	"github.com/fidelitytrust/notification-service/internal/core/ports"
)

// MockNotificationRepository is a mock implementation of ports.NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) ListByScope(ctx context.Context, scope domain.RecipientScope, limit int) ([]*domain.Notification, error) {
	args := m.Called(ctx, scope, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, scope domain.RecipientScope, ids []uuid.UUID) (int64, error) {
	args := m.Called(ctx, scope, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) CountUnread(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) Delete(ctx context.Context, scope domain.RecipientScope, id uuid.UUID) error {
	args := m.Called(ctx, scope, id)
	return args.Error(0)
}

func (m *MockNotificationRepository) DeleteByScope(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}

// MockTransactionManager is a mock implementation of ports.TransactionManager.
// It runs the given function directly, without a real transaction.
type MockTransactionManager struct {
	mock.Mock
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// MockNotificationPublisher is a mock implementation of ports.NotificationPublisher
type MockNotificationPublisher struct {
	mock.Mock
}

func NewMockNotificationPublisher() *MockNotificationPublisher {
	return &MockNotificationPublisher{}
}

func (m *MockNotificationPublisher) Publish(n *domain.Notification) {
	m.Called(n)
}

// MockNotificationService is a mock implementation of ports.NotificationService
type MockNotificationService struct {
	mock.Mock
}

func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{}
}

func (m *MockNotificationService) Create(ctx context.Context, params ports.CreateNotificationParams) (*domain.Notification, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationService) CreateTransactionNotification(ctx context.Context, userID uuid.UUID, tx domain.TransactionDescriptor) (*domain.Notification, error) {
	args := m.Called(ctx, userID, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationService) ListForRecipient(ctx context.Context, scope domain.RecipientScope, limit int) ([]*domain.Notification, error) {
	args := m.Called(ctx, scope, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, params ports.MarkReadParams) (int64, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) Delete(ctx context.Context, scope domain.RecipientScope, id uuid.UUID) error {
	args := m.Called(ctx, scope, id)
	return args.Error(0)
}

func (m *MockNotificationService) DeleteAllForRecipient(ctx context.Context, scope domain.RecipientScope) (int64, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}
