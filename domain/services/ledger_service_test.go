package services

import (
	"context"
	"errors"
	"testing"

	"itcwallet/domain/entities"
	"itcwallet/domain/events"
	"itcwallet/domain/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testUserID = "user-1"

type ledgerMocks struct {
	walletRepo      *testhelpers.MockWalletRepository
	transactionRepo *testhelpers.MockTransactionRepository
	publisher       *testhelpers.MockEventPublisher
}

func newLedgerMocks() *ledgerMocks {
	return &ledgerMocks{
		walletRepo:      new(testhelpers.MockWalletRepository),
		transactionRepo: new(testhelpers.MockTransactionRepository),
		publisher:       new(testhelpers.MockEventPublisher),
	}
}

func (m *ledgerMocks) service() *ledgerService {
	return NewLedgerService(m.walletRepo, m.transactionRepo, m.publisher, d("0.01")).(*ledgerService)
}

func (m *ledgerMocks) assertExpectations(t *testing.T) {
	m.walletRepo.AssertExpectations(t)
	m.transactionRepo.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func walletWithBalance(balance string) *entities.Wallet {
	w := entities.NewWallet(testUserID)
	w.TokenBalance = d(balance)
	w.LifetimeTokensEarned = d(balance)
	return w
}

func TestLedgerService_ApplyEntry_Credit(t *testing.T) {
	t.Parallel()

	m := newLedgerMocks()
	m.walletRepo.On("GetForUpdate", mock.Anything, testUserID).Return(walletWithBalance("100"), nil)
	m.transactionRepo.On("FindByReference", mock.Anything, testUserID, entities.TransactionTypePurchaseReward, "order-1").Return(nil, nil)
	m.transactionRepo.On("Create", mock.Anything, mock.MatchedBy(func(tx *entities.Transaction) bool {
		return tx.Amount.Equal(d("25.50")) &&
			tx.BalanceAfter.Equal(d("125.50")) &&
			tx.USDValue.Valid && tx.USDValue.Decimal.Equal(d("0.26")) &&
			*tx.ReferenceID == "order-1"
	})).Return(nil)
	m.walletRepo.On("UpdateBalance", mock.Anything, mock.MatchedBy(func(w *entities.Wallet) bool {
		return w.TokenBalance.Equal(d("125.50")) && w.LifetimeTokensEarned.Equal(d("125.50"))
	})).Return(nil)
	m.publisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		change, ok := e.(events.BalanceChangeEvent)
		return ok && change.OldBalance.Equal(d("100")) && change.NewBalance.Equal(d("125.50"))
	})).Return(nil)

	result, err := m.service().ApplyEntry(context.Background(), entities.LedgerEntry{
		UserID:      testUserID,
		Type:        entities.TransactionTypePurchaseReward,
		Amount:      d("25.50"),
		Reason:      "order reward",
		ReferenceID: entities.Ref("order-1"),
	})

	require.NoError(t, err)
	assert.True(t, d("125.50").Equal(result.Balance))
	assert.False(t, result.Duplicate)
	assert.Equal(t, result.Transaction.ID, result.TransactionID)
	m.assertExpectations(t)
}

func TestLedgerService_ApplyEntry_InsufficientBalance(t *testing.T) {
	t.Parallel()

	m := newLedgerMocks()
	m.walletRepo.On("GetForUpdate", mock.Anything, testUserID).Return(walletWithBalance("50"), nil)

	_, err := m.service().ApplyEntry(context.Background(), entities.LedgerEntry{
		UserID: testUserID,
		Type:   entities.TransactionTypeRedemption,
		Amount: d("-50.01"),
		Reason: "redeem",
	})

	var balanceErr *entities.InsufficientBalanceError
	require.True(t, errors.As(err, &balanceErr))
	assert.ErrorIs(t, err, entities.ErrInsufficientBalance)
	assert.True(t, d("50").Equal(balanceErr.Available))
	assert.True(t, d("50.01").Equal(balanceErr.Requested))
	m.transactionRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.walletRepo.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestLedgerService_ApplyEntry_DebitToExactlyZero(t *testing.T) {
	t.Parallel()

	m := newLedgerMocks()
	m.walletRepo.On("GetForUpdate", mock.Anything, testUserID).Return(walletWithBalance("50"), nil)
	m.transactionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.walletRepo.On("UpdateBalance", mock.Anything, mock.MatchedBy(func(w *entities.Wallet) bool {
		return w.TokenBalance.IsZero() && w.LifetimeTokensEarned.Equal(d("50"))
	})).Return(nil)
	m.publisher.On("Publish", mock.Anything).Return(nil)

	result, err := m.service().ApplyEntry(context.Background(), entities.LedgerEntry{
		UserID: testUserID,
		Type:   entities.TransactionTypeRedemption,
		Amount: d("-50"),
	})

	require.NoError(t, err)
	assert.True(t, result.Balance.IsZero())
	m.assertExpectations(t)
}

func TestLedgerService_ApplyEntry_DuplicateReference(t *testing.T) {
	t.Parallel()

	m := newLedgerMocks()
	existing := &entities.Transaction{Type: entities.TransactionTypeCommunityBoost, Amount: d("5")}
	m.walletRepo.On("GetForUpdate", mock.Anything, testUserID).Return(walletWithBalance("105"), nil)
	m.transactionRepo.On("FindByReference", mock.Anything, testUserID, entities.TransactionTypeCommunityBoost, "boost-9").Return(existing, nil)

	result, err := m.service().ApplyEntry(context.Background(), entities.LedgerEntry{
		UserID:           testUserID,
		Type:             entities.TransactionTypeCommunityBoost,
		Amount:           d("5"),
		ReferenceID:      entities.Ref("boost-9"),
		DedupByReference: true,
	})

	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, existing.ID, result.TransactionID)
	assert.True(t, d("105").Equal(result.Balance))
	m.transactionRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestLedgerService_ApplyEntry_FrozenWallet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		txType  entities.TransactionType
		amount  string
		wantErr error
	}{
		{name: "reward rejected", txType: entities.TransactionTypeCommunityBoost, amount: "5", wantErr: entities.ErrWalletFrozen},
		{name: "redemption rejected", txType: entities.TransactionTypeRedemption, amount: "-5", wantErr: entities.ErrWalletFrozen},
		{name: "admin adjustment allowed", txType: entities.TransactionTypeAdminAdjustment, amount: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newLedgerMocks()
			wallet := walletWithBalance("10")
			wallet.Status = entities.WalletStatusFrozen
			m.walletRepo.On("GetForUpdate", mock.Anything, testUserID).Return(wallet, nil)
			if tt.wantErr == nil {
				m.transactionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
				m.walletRepo.On("UpdateBalance", mock.Anything, mock.Anything).Return(nil)
				m.publisher.On("Publish", mock.Anything).Return(nil)
			}

			_, err := m.service().ApplyEntry(context.Background(), entities.LedgerEntry{
				UserID: testUserID,
				Type:   tt.txType,
				Amount: d(tt.amount),
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			m.assertExpectations(t)
		})
	}
}

func TestLedgerService_ApplyEntry_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entry   entities.LedgerEntry
		wantErr error
	}{
		{
			name:    "zero amount",
			entry:   entities.LedgerEntry{UserID: testUserID, Type: entities.TransactionTypeAdminAdjustment, Amount: decimal.Zero},
			wantErr: entities.ErrInvalidAmount,
		},
		{
			name:    "three fraction digits",
			entry:   entities.LedgerEntry{UserID: testUserID, Type: entities.TransactionTypeReferral, Amount: d("1.005")},
			wantErr: entities.ErrInvalidAmount,
		},
		{
			name:    "negative credit",
			entry:   entities.LedgerEntry{UserID: testUserID, Type: entities.TransactionTypeReferral, Amount: d("-10")},
			wantErr: entities.ErrInvalidAmount,
		},
		{
			name:    "positive debit",
			entry:   entities.LedgerEntry{UserID: testUserID, Type: entities.TransactionTypeCashout, Amount: d("10")},
			wantErr: entities.ErrInvalidAmount,
		},
		{
			name:    "missing user",
			entry:   entities.LedgerEntry{Type: entities.TransactionTypeReferral, Amount: d("10")},
			wantErr: entities.ErrInvalidEntry,
		},
		{
			name:    "unknown type",
			entry:   entities.LedgerEntry{UserID: testUserID, Type: "bonus", Amount: d("10")},
			wantErr: entities.ErrInvalidEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newLedgerMocks()
			_, err := m.service().ApplyEntry(context.Background(), tt.entry)

			assert.ErrorIs(t, err, tt.wantErr)
			m.walletRepo.AssertNotCalled(t, "GetForUpdate", mock.Anything, mock.Anything)
		})
	}
}

func TestLedgerService_RefundDoesNotCountAsEarned(t *testing.T) {
	t.Parallel()

	m := newLedgerMocks()
	m.walletRepo.On("GetForUpdate", mock.Anything, testUserID).Return(walletWithBalance("10"), nil)
	m.transactionRepo.On("FindByReference", mock.Anything, testUserID, entities.TransactionTypeRefund, "cashout-1").Return(nil, nil)
	m.transactionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.walletRepo.On("UpdateBalance", mock.Anything, mock.MatchedBy(func(w *entities.Wallet) bool {
		return w.TokenBalance.Equal(d("1010")) && w.LifetimeTokensEarned.Equal(d("10"))
	})).Return(nil)
	m.publisher.On("Publish", mock.Anything).Return(nil)

	_, err := m.service().ApplyEntry(context.Background(), entities.LedgerEntry{
		UserID:      testUserID,
		Type:        entities.TransactionTypeRefund,
		Amount:      d("1000"),
		ReferenceID: entities.Ref("cashout-1"),
	})

	require.NoError(t, err)
	m.assertExpectations(t)
}

func TestLedgerService_PublishFailureDoesNotFailEntry(t *testing.T) {
	t.Parallel()

	m := newLedgerMocks()
	m.walletRepo.On("GetForUpdate", mock.Anything, testUserID).Return(walletWithBalance("0"), nil)
	m.transactionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.walletRepo.On("UpdateBalance", mock.Anything, mock.Anything).Return(nil)
	m.publisher.On("Publish", mock.Anything).Return(errors.New("nats down"))

	_, err := m.service().ApplyEntry(context.Background(), entities.LedgerEntry{
		UserID: testUserID,
		Type:   entities.TransactionTypeCommunityBoost,
		Amount: d("5"),
	})

	assert.NoError(t, err)
}
