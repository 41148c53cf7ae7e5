package http

import (
	"bytes"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
	"github.com/fidelitytrust/notification-service/internal/core/mocks"
	"github.com/fidelitytrust/notification-service/internal/core/ports"
)

const testProducerKey = "producer-key-for-tests"

func newProducerTestServer(t *testing.T) (*httptest.Server, *mocks.MockNotificationService) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testProducerKey), bcrypt.MinCost)
	require.NoError(t, err)

	service := mocks.NewMockNotificationService()
	logger := testLogger()
	handler := NewProducerHandler(service, string(hash), NewErrorHandler(logger), logger)

	r := chi.NewRouter()
	r.Route("/api/v1/internal", handler.RegisterRoutes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv, service
}

func doProducerRequest(t *testing.T, url, apiKey string, body any) *stdhttp.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := stdhttp.NewRequest(stdhttp.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}

	resp, err := stdhttp.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateTransactionNotification(t *testing.T) {
	srv, service := newProducerTestServer(t)

	userID := uuid.New()
	transactionID := uuid.New()

	stored := &domain.Notification{
		ID:        uuid.New(),
		Scope:     domain.ScopeForUser(userID),
		Kind:      domain.KindTransaction,
		Title:     "Deposit Completed",
		CreatedAt: time.Now(),
	}

	service.On("CreateTransactionNotification", mock.Anything, userID, domain.TransactionDescriptor{
		TransactionID: transactionID,
		Type:          domain.TransactionDeposit,
		Amount:        250,
		Currency:      "USD",
		Status:        "COMPLETED",
	}).Return(stored, nil)

	resp := doProducerRequest(t, srv.URL+"/api/v1/internal/transaction-notifications", testProducerKey, TransactionNotificationRequest{
		UserID:        userID.String(),
		TransactionID: transactionID.String(),
		Type:          "deposit",
		Amount:        250,
		Currency:      "USD",
		Status:        "COMPLETED",
	})
	defer resp.Body.Close()
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)

	var dto NotificationDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dto))
	assert.Equal(t, "Deposit Completed", dto.Title)

	service.AssertExpectations(t)
}

func TestCreateTransactionNotificationRejectsMissingKey(t *testing.T) {
	srv, service := newProducerTestServer(t)

	resp := doProducerRequest(t, srv.URL+"/api/v1/internal/transaction-notifications", "", TransactionNotificationRequest{})
	defer resp.Body.Close()
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)

	service.AssertNotCalled(t, "CreateTransactionNotification", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateTransactionNotificationRejectsWrongKey(t *testing.T) {
	srv, service := newProducerTestServer(t)

	resp := doProducerRequest(t, srv.URL+"/api/v1/internal/transaction-notifications", "wrong-key", TransactionNotificationRequest{})
	defer resp.Body.Close()
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)

	service.AssertNotCalled(t, "CreateTransactionNotification", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateTransactionNotificationValidates(t *testing.T) {
	srv, service := newProducerTestServer(t)

	resp := doProducerRequest(t, srv.URL+"/api/v1/internal/transaction-notifications", testProducerKey, TransactionNotificationRequest{
		UserID: "not-a-uuid",
		Type:   "deposit",
		Amount: -5,
	})
	defer resp.Body.Close()
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, resp.StatusCode)

	service.AssertNotCalled(t, "CreateTransactionNotification", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateSystemNotificationForUser(t *testing.T) {
	srv, service := newProducerTestServer(t)

	userID := uuid.New()
	stored := &domain.Notification{
		ID:    uuid.New(),
		Scope: domain.ScopeForUser(userID),
		Kind:  domain.KindSystem,
		Title: "Scheduled Maintenance",
	}

	service.On("Create", mock.Anything, mock.MatchedBy(func(p ports.CreateNotificationParams) bool {
		return p.Scope == domain.ScopeForUser(userID) && p.Kind == domain.KindSystem && p.Title == "Scheduled Maintenance"
	})).Return(stored, nil)

	resp := doProducerRequest(t, srv.URL+"/api/v1/internal/system-notifications", testProducerKey, SystemNotificationRequest{
		UserID: userID.String(),
		Title:  "Scheduled Maintenance",
		Body:   "Online banking will be unavailable Sunday 02:00-04:00 UTC.",
	})
	defer resp.Body.Close()
	assert.Equal(t, stdhttp.StatusCreated, resp.StatusCode)

	service.AssertExpectations(t)
}

func TestCreateSystemNotificationBroadcast(t *testing.T) {
	srv, service := newProducerTestServer(t)

	stored := &domain.Notification{
		ID:    uuid.New(),
		Scope: domain.AdminBroadcast,
		Kind:  domain.KindAlert,
		Title: "Fraud Alert",
	}

	service.On("Create", mock.Anything, mock.MatchedBy(func(p ports.CreateNotificationParams) bool {
		return p.Scope == domain.AdminBroadcast && p.Kind == domain.KindAlert
	})).Return(stored, nil)

	resp := doProducerRequest(t, srv.URL+"/api/v1/internal/system-notifications", testProducerKey, SystemNotificationRequest{
		Broadcast: true,
		Kind:      "alert",
		Title:     "Fraud Alert",
	})
	defer resp.Body.Close()
	assert.Equal(t, stdhttp.StatusCreated, resp.StatusCode)

	service.AssertExpectations(t)
}

func TestCreateSystemNotificationRequiresTarget(t *testing.T) {
	srv, service := newProducerTestServer(t)

	resp := doProducerRequest(t, srv.URL+"/api/v1/internal/system-notifications", testProducerKey, SystemNotificationRequest{
		Title: "No target",
	})
	defer resp.Body.Close()
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, resp.StatusCode)

	service.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
