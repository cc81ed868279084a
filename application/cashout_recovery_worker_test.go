package application

import (
	"context"
	"testing"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCashoutRecoveryWorker_RunsOnStart(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	store.SeedWallet(testUserID, "10000")
	stale := reserveAt(t, store, "2000", time.Now().Add(-time.Hour))

	processor := new(testhelpers.MockPayoutProcessor)
	processor.On("FindTransfer", mock.Anything, stale.TransferIdempotencyKey()).Return(nil, nil)

	worker := NewCashoutRecoveryWorker(newTestOrchestrator(store, processor), time.Hour, 15*time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := worker.Start(ctx)
	defer stop()

	assert.Eventually(t, func() bool {
		request := store.Cashout(stale.ID)
		return request != nil && request.Status == entities.CashoutStatusFailed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return d("10000").Equal(store.Wallet(testUserID).TokenBalance)
	}, 2*time.Second, 10*time.Millisecond)
}
