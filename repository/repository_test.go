package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/events"
	"itcwallet/domain/interfaces"
	"itcwallet/domain/services"
	"itcwallet/repository/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher collects flushed events so tests can see what was committed
type recordingPublisher struct {
	mu      sync.Mutex
	pending []events.Event
	flushed *[]events.Event
}

func (p *recordingPublisher) Publish(event events.Event) error {
	p.pending = append(p.pending, event)
	return nil
}

func (p *recordingPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.flushed = append(*p.flushed, p.pending...)
	p.pending = nil
	return nil
}

func (p *recordingPublisher) Discard() {
	p.pending = nil
}

func newTestFactory(t *testing.T) (interfaces.UnitOfWorkFactory, *testutil.TestDatabase, *[]events.Event) {
	testDB := testutil.SetupTestDatabase(t)
	flushed := &[]events.Event{}
	var mu sync.Mutex
	factory := NewUnitOfWorkFactory(testDB.DB, func() interfaces.TransactionalEventPublisher {
		mu.Lock()
		defer mu.Unlock()
		return &recordingPublisher{flushed: flushed}
	})
	return factory, testDB, flushed
}

func applyEntry(ctx context.Context, factory interfaces.UnitOfWorkFactory, entry entities.LedgerEntry) (*entities.LedgerResult, error) {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	ledger := services.NewLedgerService(uow.WalletRepository(), uow.TransactionRepository(), uow.EventBus(), decimal.RequireFromString("0.01"))
	result, err := ledger.ApplyEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func TestLedger_ApplyEntryPersistsTransactionAndBalance(t *testing.T) {
	factory, testDB, flushed := newTestFactory(t)
	ctx := context.Background()

	_, err := applyEntry(ctx, factory, entities.LedgerEntry{
		UserID:      "user-1",
		Type:        entities.TransactionTypePurchaseReward,
		Amount:      decimal.RequireFromString("1000"),
		Reason:      "order reward",
		ReferenceID: entities.Ref("order-1"),
		Metadata:    map[string]any{"tier": "gold"},
	})
	require.NoError(t, err)

	result, err := applyEntry(ctx, factory, entities.LedgerEntry{
		UserID: "user-1",
		Type:   entities.TransactionTypeRedemption,
		Amount: decimal.RequireFromString("-250.25"),
		Reason: "redeem",
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("749.75").Equal(result.Balance))

	wallet, err := NewWalletRepositoryScoped(testDB.DB).GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, wallet)
	assert.True(t, decimal.RequireFromString("749.75").Equal(wallet.TokenBalance))
	assert.True(t, decimal.RequireFromString("1000").Equal(wallet.LifetimeTokensEarned))

	txRepo := NewTransactionRepositoryScoped(testDB.DB)
	history, err := txRepo.GetByUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entities.TransactionTypeRedemption, history[0].Type)
	assert.Equal(t, entities.TransactionTypePurchaseReward, history[1].Type)
	assert.Equal(t, "gold", history[1].Metadata["tier"])
	assert.True(t, history[1].USDValue.Valid)
	assert.True(t, decimal.RequireFromString("10").Equal(history[1].USDValue.Decimal))

	count, err := txRepo.CountByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.Len(t, *flushed, 2)
}

func TestLedger_InsufficientBalanceWritesNothing(t *testing.T) {
	factory, testDB, flushed := newTestFactory(t)
	ctx := context.Background()

	_, err := applyEntry(ctx, factory, entities.LedgerEntry{
		UserID: "user-2",
		Type:   entities.TransactionTypeCashout,
		Amount: decimal.RequireFromString("-1"),
	})
	assert.ErrorIs(t, err, entities.ErrInsufficientBalance)

	count, err := NewTransactionRepositoryScoped(testDB.DB).CountByUser(ctx, "user-2")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, *flushed)
}

func TestLedger_ConcurrentEntriesReplayToBalance(t *testing.T) {
	factory, testDB, _ := newTestFactory(t)
	ctx := context.Background()

	_, err := applyEntry(ctx, factory, entities.LedgerEntry{
		UserID: "user-3",
		Type:   entities.TransactionTypeAdminAdjustment,
		Amount: decimal.RequireFromString("100"),
		Reason: "opening balance",
	})
	require.NoError(t, err)

	// 40 debits of 5 race for a balance that covers only 20 of them
	const workers = 40
	var wg sync.WaitGroup
	results := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := applyEntry(ctx, factory, entities.LedgerEntry{
				UserID: "user-3",
				Type:   entities.TransactionTypeRedemption,
				Amount: decimal.RequireFromString("-5"),
			})
			results <- err
		}()
		go func() {
			defer wg.Done()
			_, err := applyEntry(ctx, factory, entities.LedgerEntry{
				UserID: "user-3",
				Type:   entities.TransactionTypeCommunityBoost,
				Amount: decimal.RequireFromString("0.25"),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			assert.ErrorIs(t, err, entities.ErrInsufficientBalance)
		}
	}

	txRepo := NewTransactionRepositoryScoped(testDB.DB)
	all, err := txRepo.GetAllByUser(ctx, "user-3")
	require.NoError(t, err)

	replayed, err := entities.ReplayBalance(all)
	require.NoError(t, err)

	wallet, err := NewWalletRepositoryScoped(testDB.DB).GetByUserID(ctx, "user-3")
	require.NoError(t, err)
	assert.True(t, replayed.Equal(wallet.TokenBalance), "replayed %s, stored %s", replayed, wallet.TokenBalance)
	assert.False(t, wallet.TokenBalance.IsNegative())
}

func TestTransactionRepository_UniqueReference(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	testutil.EnsureWallet(t, testDB.DB, "user-4")

	repo := NewTransactionRepositoryScoped(testDB.DB)
	newTx := func(txType entities.TransactionType, balanceAfter string) *entities.Transaction {
		return &entities.Transaction{
			ID:           uuid.New(),
			UserID:       "user-4",
			Type:         txType,
			Amount:       decimal.RequireFromString("10"),
			BalanceAfter: decimal.RequireFromString(balanceAfter),
			Reason:       "test",
			ReferenceID:  entities.Ref("ref-1"),
			Metadata:     map[string]any{},
		}
	}

	require.NoError(t, repo.Create(ctx, newTx(entities.TransactionTypeReferral, "10")))
	err := repo.Create(ctx, newTx(entities.TransactionTypeReferral, "20"))
	assert.ErrorIs(t, err, entities.ErrDuplicateEntry)

	// community boosts rely on caller-side dedup and are not constrained by the index
	require.NoError(t, repo.Create(ctx, newTx(entities.TransactionTypeCommunityBoost, "20")))
	require.NoError(t, repo.Create(ctx, newTx(entities.TransactionTypeCommunityBoost, "30")))

	found, err := repo.FindByReference(ctx, "user-4", entities.TransactionTypeReferral, "ref-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, entities.TransactionTypeReferral, found.Type)

	missing, err := repo.FindByReference(ctx, "user-4", entities.TransactionTypeRefund, "ref-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTransactionRepository_RowsAreImmutable(t *testing.T) {
	factory, testDB, _ := newTestFactory(t)
	ctx := context.Background()

	result, err := applyEntry(ctx, factory, entities.LedgerEntry{
		UserID: "user-5",
		Type:   entities.TransactionTypeCommunityBoost,
		Amount: decimal.RequireFromString("5"),
	})
	require.NoError(t, err)

	_, err = testDB.DB.Exec(ctx, `UPDATE wallet_transactions SET amount = 500 WHERE id = $1`, result.TransactionID)
	assert.Error(t, err)

	_, err = testDB.DB.Exec(ctx, `DELETE FROM wallet_transactions WHERE id = $1`, result.TransactionID)
	assert.Error(t, err)
}

func TestCashoutRepository_Lifecycle(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	testutil.EnsureWallet(t, testDB.DB, "user-6")

	repo := NewCashoutRepositoryScoped(testDB.DB)
	request := testutil.CreateTestCashoutRequest("user-6")
	require.NoError(t, repo.Create(ctx, request))

	loaded, err := repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, entities.CashoutStatusReserved, loaded.Status)
	assert.True(t, request.NetCurrency.Equal(loaded.NetCurrency))

	stale, err := repo.GetStaleReserved(ctx, request.RequestedAt.Add(1), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, request.ID, stale[0].ID)

	require.NoError(t, loaded.MarkTransferring("tr_1", "po_1", loaded.UpdatedAt))
	require.NoError(t, repo.Update(ctx, loaded))

	updated, err := repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CashoutStatusTransferring, updated.Status)
	require.NotNil(t, updated.ExternalTransferID)
	assert.Equal(t, "tr_1", *updated.ExternalTransferID)

	stale, err = repo.GetStaleReserved(ctx, request.RequestedAt.Add(1), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Update(ctx, testutil.CreateTestCashoutRequest("user-6"))
	assert.ErrorIs(t, err, entities.ErrCashoutNotFound)
}

func TestDestinationAccountRepository_Upsert(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	repo := NewDestinationAccountRepositoryScoped(testDB.DB)
	account := testutil.CreateTestDestinationAccount("user-7", "acct_7")
	require.NoError(t, repo.Upsert(ctx, account))

	account.InstantPayoutsEligible = true
	account.RequirementsDue = []string{"external_account"}
	require.NoError(t, repo.Upsert(ctx, account))

	byUser, err := repo.GetByUserID(ctx, "user-7")
	require.NoError(t, err)
	require.NotNil(t, byUser)
	assert.True(t, byUser.InstantPayoutsEligible)
	assert.Equal(t, []string{"external_account"}, byUser.RequirementsDue)

	byExternal, err := repo.GetByExternalID(ctx, "acct_7")
	require.NoError(t, err)
	require.NotNil(t, byExternal)
	assert.Equal(t, "user-7", byExternal.UserID)

	none, err := repo.GetByUserID(ctx, "user-unknown")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestWebhookEventRepository_Record(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	repo := NewWebhookEventRepositoryScoped(testDB.DB)
	for i, wantErr := range []error{nil, entities.ErrDuplicateWebhookEvent} {
		err := repo.Record(ctx, &entities.WebhookEventRecord{
			EventID:    "evt_1",
			EventType:  entities.ProcessorEventPayoutPaid,
			Outcome:    entities.WebhookOutcomeApplied,
			ReceivedAt: time.Now().UTC(),
		})
		if wantErr == nil {
			require.NoError(t, err, "attempt %d", i)
		} else {
			assert.ErrorIs(t, err, wantErr)
		}
	}

	exists, err := repo.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, exists)
}
