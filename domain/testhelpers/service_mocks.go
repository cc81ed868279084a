package testhelpers

import (
	"context"
	"time"

	"itcwallet/domain/entities"

	"github.com/stretchr/testify/mock"
)

// MockPayoutProcessor is a mock implementation of PayoutProcessor
type MockPayoutProcessor struct {
	mock.Mock
}

func (m *MockPayoutProcessor) CreateAccount(ctx context.Context, userID, email, country string) (*entities.ProcessorAccount, error) {
	args := m.Called(ctx, userID, email, country)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ProcessorAccount), args.Error(1)
}

func (m *MockPayoutProcessor) GetAccount(ctx context.Context, accountID string) (*entities.ProcessorAccount, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ProcessorAccount), args.Error(1)
}

func (m *MockPayoutProcessor) CreateTransfer(ctx context.Context, req entities.TransferRequest) (*entities.ProcessorTransfer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ProcessorTransfer), args.Error(1)
}

func (m *MockPayoutProcessor) FindTransfer(ctx context.Context, idempotencyKey string) (*entities.ProcessorTransfer, error) {
	args := m.Called(ctx, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ProcessorTransfer), args.Error(1)
}

func (m *MockPayoutProcessor) ReverseTransfer(ctx context.Context, transferID string) error {
	args := m.Called(ctx, transferID)
	return args.Error(0)
}

func (m *MockPayoutProcessor) CreatePayout(ctx context.Context, req entities.PayoutRequest) (*entities.ProcessorPayout, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ProcessorPayout), args.Error(1)
}

// MockWebhookVerifier is a mock implementation of WebhookVerifier
type MockWebhookVerifier struct {
	mock.Mock
}

func (m *MockWebhookVerifier) Verify(payload []byte, signatureHeader string, now time.Time) error {
	args := m.Called(payload, signatureHeader, now)
	return args.Error(0)
}

// MockWebhookEventCache is a mock implementation of WebhookEventCache
type MockWebhookEventCache struct {
	mock.Mock
}

func (m *MockWebhookEventCache) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookEventCache) MarkProcessed(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}
