package application

import (
	"context"
	"testing"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/interfaces"
	"itcwallet/domain/services"
	"itcwallet/domain/testhelpers"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testUserID = "user-1"

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func readyDestination(userID string, instant bool) *entities.DestinationAccount {
	return &entities.DestinationAccount{
		UserID:                 userID,
		ExternalAccountID:      "acct_" + userID,
		OnboardingComplete:     true,
		PayoutsEnabled:         true,
		InstantPayoutsEligible: instant,
		LastSyncedAt:           time.Now(),
		CreatedAt:              time.Now(),
	}
}

func newTestOrchestrator(store *testhelpers.MemoryStore, processor interfaces.PayoutProcessor) *CashoutOrchestrator {
	o := NewCashoutOrchestrator(store, processor, services.DefaultFeeSchedule())
	o.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return o
}

// reserveAt reserves amount tokens for testUserID as if it had been requested at requestedAt
func reserveAt(t *testing.T, store *testhelpers.MemoryStore, amount string, requestedAt time.Time) *entities.CashoutRequest {
	t.Helper()
	fees := services.DefaultFeeSchedule()
	quote := services.CalculateCashout(d(amount), entities.PayoutTypeStandard, fees)
	request := entities.NewCashoutRequest(testUserID, "acct_"+testUserID, quote, requestedAt)

	err := runInUnitOfWork(context.Background(), store, func(uow interfaces.UnitOfWork) error {
		_, err := newDomainServices(uow, fees.TokenUSDRate).cashouts.Reserve(context.Background(), request)
		return err
	})
	require.NoError(t, err)
	return request
}

func transactionsOfType(store *testhelpers.MemoryStore, userID string, txType entities.TransactionType) []*entities.Transaction {
	var out []*entities.Transaction
	for _, tx := range store.Transactions(userID) {
		if tx.Type == txType {
			out = append(out, tx)
		}
	}
	return out
}

func requireLedgerConsistent(t *testing.T, store *testhelpers.MemoryStore, userID string) {
	t.Helper()
	replayed, err := entities.ReplayBalance(store.Transactions(userID))
	require.NoError(t, err)
	require.True(t, replayed.Equal(store.Wallet(userID).TokenBalance),
		"replayed %s, cached %s", replayed, store.Wallet(userID).TokenBalance)
}
