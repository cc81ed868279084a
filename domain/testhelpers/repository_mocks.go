package testhelpers

import (
	"context"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockWalletRepository is a mock implementation of WalletRepository
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) GetForUpdate(ctx context.Context, userID string) (*entities.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetByUserID(ctx context.Context, userID string) (*entities.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wallet), args.Error(1)
}

func (m *MockWalletRepository) UpdateBalance(ctx context.Context, wallet *entities.Wallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func (m *MockWalletRepository) SetStatus(ctx context.Context, userID string, status entities.WalletStatus) error {
	args := m.Called(ctx, userID, status)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) FindByReference(ctx context.Context, userID string, txType entities.TransactionType, referenceID string) (*entities.Transaction, error) {
	args := m.Called(ctx, userID, txType, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByUser(ctx context.Context, userID string, limit, offset int) ([]*entities.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetAllByUser(ctx context.Context, userID string) ([]*entities.Transaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockCashoutRepository is a mock implementation of CashoutRepository
type MockCashoutRepository struct {
	mock.Mock
}

func (m *MockCashoutRepository) Create(ctx context.Context, request *entities.CashoutRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockCashoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.CashoutRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CashoutRequest), args.Error(1)
}

func (m *MockCashoutRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.CashoutRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CashoutRequest), args.Error(1)
}

func (m *MockCashoutRepository) Update(ctx context.Context, request *entities.CashoutRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockCashoutRepository) GetStaleReserved(ctx context.Context, requestedBefore time.Time, limit int) ([]*entities.CashoutRequest, error) {
	args := m.Called(ctx, requestedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.CashoutRequest), args.Error(1)
}

// MockDestinationAccountRepository is a mock implementation of DestinationAccountRepository
type MockDestinationAccountRepository struct {
	mock.Mock
}

func (m *MockDestinationAccountRepository) GetByUserID(ctx context.Context, userID string) (*entities.DestinationAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DestinationAccount), args.Error(1)
}

func (m *MockDestinationAccountRepository) GetByExternalID(ctx context.Context, externalAccountID string) (*entities.DestinationAccount, error) {
	args := m.Called(ctx, externalAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DestinationAccount), args.Error(1)
}

func (m *MockDestinationAccountRepository) Upsert(ctx context.Context, account *entities.DestinationAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockWebhookEventRepository is a mock implementation of WebhookEventRepository
type MockWebhookEventRepository struct {
	mock.Mock
}

func (m *MockWebhookEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookEventRepository) Record(ctx context.Context, record *entities.WebhookEventRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockLedgerService is a mock implementation of LedgerService
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) ApplyEntry(ctx context.Context, entry entities.LedgerEntry) (*entities.LedgerResult, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerResult), args.Error(1)
}

// MockDestinationAccountService is a mock implementation of DestinationAccountService
type MockDestinationAccountService struct {
	mock.Mock
}

func (m *MockDestinationAccountService) ApplyProcessorAccount(ctx context.Context, userID string, account *entities.ProcessorAccount) (*entities.DestinationAccount, bool, error) {
	args := m.Called(ctx, userID, account)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entities.DestinationAccount), args.Bool(1), args.Error(2)
}
