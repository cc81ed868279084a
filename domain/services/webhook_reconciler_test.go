package services

import (
	"context"
	"testing"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/interfaces"
	"itcwallet/domain/testhelpers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withUnitOfWork runs fn against services bound to a fresh unit of work and commits on success
func withUnitOfWork(t *testing.T, store *testhelpers.MemoryStore, fn func(cashouts interfaces.CashoutService, reconciler interfaces.WebhookReconciler) error) error {
	t.Helper()
	ctx := context.Background()
	uow := store.Create()
	require.NoError(t, uow.Begin(ctx))

	ledger := NewLedgerService(uow.WalletRepository(), uow.TransactionRepository(), uow.EventBus(), d("0.01"))
	cashouts := NewCashoutService(uow.CashoutRepository(), ledger, uow.EventBus())
	destinations := NewDestinationAccountService(uow.DestinationAccountRepository(), uow.EventBus())
	reconciler := NewWebhookReconciler(uow.CashoutRepository(), uow.WebhookEventRepository(), ledger, destinations, uow.EventBus())

	if err := fn(cashouts, reconciler); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

func reservedRequest(t *testing.T, store *testhelpers.MemoryStore, amount string) *entities.CashoutRequest {
	t.Helper()
	quote := CalculateCashout(d(amount), entities.PayoutTypeStandard, DefaultFeeSchedule())
	request := entities.NewCashoutRequest(testUserID, "acct_1", quote, time.Now())
	err := withUnitOfWork(t, store, func(cashouts interfaces.CashoutService, _ interfaces.WebhookReconciler) error {
		_, err := cashouts.Reserve(context.Background(), request)
		return err
	})
	require.NoError(t, err)
	return request
}

func applyEvent(t *testing.T, store *testhelpers.MemoryStore, event *entities.ProcessorEvent) (entities.WebhookOutcome, error) {
	t.Helper()
	var outcome entities.WebhookOutcome
	err := withUnitOfWork(t, store, func(_ interfaces.CashoutService, reconciler interfaces.WebhookReconciler) error {
		var err error
		outcome, err = reconciler.Apply(context.Background(), event)
		return err
	})
	return outcome, err
}

func assertLedgerConsistent(t *testing.T, store *testhelpers.MemoryStore, userID string) {
	t.Helper()
	replayed, err := entities.ReplayBalance(store.Transactions(userID))
	require.NoError(t, err)
	assert.True(t, replayed.Equal(store.Wallet(userID).TokenBalance), "replayed %s, cached %s", replayed, store.Wallet(userID).TokenBalance)
}

func payoutEvent(id string, eventType entities.ProcessorEventType, requestID uuid.UUID) *entities.ProcessorEvent {
	return &entities.ProcessorEvent{
		ID:               id,
		Type:             eventType,
		CreatedAt:        time.Now(),
		CashoutRequestID: &requestID,
		PayoutID:         "po_1",
		FailureCode:      "account_closed",
		FailureMessage:   "The bank account has been closed",
	}
}

func TestCashoutService_ReserveAndRecordTransfer(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	store.SeedWallet(testUserID, "10000")

	request := reservedRequest(t, store, "6000")

	stored := store.Cashout(request.ID)
	require.NotNil(t, stored)
	assert.Equal(t, entities.CashoutStatusReserved, stored.Status)
	assert.True(t, d("4000").Equal(store.Wallet(testUserID).TokenBalance))

	err := withUnitOfWork(t, store, func(cashouts interfaces.CashoutService, _ interfaces.WebhookReconciler) error {
		_, err := cashouts.RecordTransfer(context.Background(), request.ID, "tr_1", "po_1")
		return err
	})
	require.NoError(t, err)

	stored = store.Cashout(request.ID)
	assert.Equal(t, entities.CashoutStatusTransferring, stored.Status)
	assert.Equal(t, "tr_1", *stored.ExternalTransferID)
	assert.Equal(t, "po_1", *stored.ExternalPayoutID)
	assertLedgerConsistent(t, store, testUserID)
}

func TestCashoutService_ReserveInsufficientBalanceWritesNothing(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	store.SeedWallet(testUserID, "500")

	quote := CalculateCashout(d("1000"), entities.PayoutTypeStandard, DefaultFeeSchedule())
	request := entities.NewCashoutRequest(testUserID, "acct_1", quote, time.Now())
	err := withUnitOfWork(t, store, func(cashouts interfaces.CashoutService, _ interfaces.WebhookReconciler) error {
		_, err := cashouts.Reserve(context.Background(), request)
		return err
	})

	assert.ErrorIs(t, err, entities.ErrInsufficientBalance)
	assert.Len(t, store.Transactions(testUserID), 1)
	assert.Nil(t, store.Cashout(request.ID))
}

func TestCashoutService_CompensateIsIdempotent(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	store.SeedWallet(testUserID, "6000")
	request := reservedRequest(t, store, "6000")

	for i := 0; i < 2; i++ {
		err := withUnitOfWork(t, store, func(cashouts interfaces.CashoutService, _ interfaces.WebhookReconciler) error {
			_, err := cashouts.Compensate(context.Background(), request.ID, "processor_unavailable", "timeout")
			return err
		})
		require.NoError(t, err)
	}

	stored := store.Cashout(request.ID)
	assert.Equal(t, entities.CashoutStatusFailed, stored.Status)
	assert.Equal(t, "processor_unavailable", *stored.FailureCode)
	assert.True(t, d("6000").Equal(store.Wallet(testUserID).TokenBalance))
	assert.Len(t, store.Transactions(testUserID), 3)
	assertLedgerConsistent(t, store, testUserID)
}

func TestCashoutService_CompensatePaidRequestFails(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	store.SeedWallet(testUserID, "6000")
	request := reservedRequest(t, store, "6000")

	_, err := applyEvent(t, store, payoutEvent("evt_paid", entities.ProcessorEventPayoutPaid, request.ID))
	require.NoError(t, err)

	err = withUnitOfWork(t, store, func(cashouts interfaces.CashoutService, _ interfaces.WebhookReconciler) error {
		_, err := cashouts.Compensate(context.Background(), request.ID, "reservation_expired", "")
		return err
	})
	assert.ErrorIs(t, err, entities.ErrInvalidStateTransition)
	assert.Equal(t, entities.CashoutStatusPaid, store.Cashout(request.ID).Status)
}

func TestWebhookReconciler_PayoutPaid(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	store.SeedWallet(testUserID, "6000")
	request := reservedRequest(t, store, "6000")

	arrival := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	event := payoutEvent("evt_1", entities.ProcessorEventPayoutPaid, request.ID)
	event.ArrivalDate = &arrival

	outcome, err := applyEvent(t, store, event)
	require.NoError(t, err)
	assert.Equal(t, entities.WebhookOutcomeApplied, outcome)

	stored := store.Cashout(request.ID)
	assert.Equal(t, entities.CashoutStatusPaid, stored.Status)
	assert.Equal(t, arrival, *stored.ArrivedAt)
	assert.Equal(t, "po_1", *stored.ExternalPayoutID)

	// same event again
	outcome, err = applyEvent(t, store, event)
	require.NoError(t, err)
	assert.Equal(t, entities.WebhookOutcomeDuplicate, outcome)

	// a different delivery of the same fact
	outcome, err = applyEvent(t, store, payoutEvent("evt_2", entities.ProcessorEventPayoutPaid, request.ID))
	require.NoError(t, err)
	assert.Equal(t, entities.WebhookOutcomeNoop, outcome)
	assert.True(t, store.Wallet(testUserID).TokenBalance.IsZero())
}

func TestWebhookReconciler_PayoutFailedRefundsOnce(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	store.SeedWallet(testUserID, "6000")
	request := reservedRequest(t, store, "6000")

	outcome, err := applyEvent(t, store, payoutEvent("evt_1", entities.ProcessorEventPayoutFailed, request.ID))
	require.NoError(t, err)
	assert.Equal(t, entities.WebhookOutcomeApplied, outcome)

	stored := store.Cashout(request.ID)
	assert.Equal(t, entities.CashoutStatusRefunded, stored.Status)
	assert.Equal(t, "account_closed", *stored.FailureCode)
	assert.True(t, d("6000").Equal(store.Wallet(testUserID).TokenBalance))

	for _, id := range []string{"evt_1", "evt_2"} {
		_, err := applyEvent(t, store, payoutEvent(id, entities.ProcessorEventPayoutFailed, request.ID))
		require.NoError(t, err)
	}

	assert.True(t, d("6000").Equal(store.Wallet(testUserID).TokenBalance))
	assert.Len(t, store.Transactions(testUserID), 3)
	assertLedgerConsistent(t, store, testUserID)
}

func TestWebhookReconciler_PayoutFailedAfterCompensationIsNoop(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	store.SeedWallet(testUserID, "6000")
	request := reservedRequest(t, store, "6000")

	err := withUnitOfWork(t, store, func(cashouts interfaces.CashoutService, _ interfaces.WebhookReconciler) error {
		_, err := cashouts.Compensate(context.Background(), request.ID, "processor_unavailable", "timeout")
		return err
	})
	require.NoError(t, err)

	outcome, err := applyEvent(t, store, payoutEvent("evt_1", entities.ProcessorEventPayoutFailed, request.ID))
	require.NoError(t, err)
	assert.Equal(t, entities.WebhookOutcomeNoop, outcome)
	assert.Equal(t, entities.CashoutStatusFailed, store.Cashout(request.ID).Status)
	assert.Len(t, store.Transactions(testUserID), 3)
}

func TestWebhookReconciler_OutOfOrderEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		first      entities.ProcessorEventType
		second     entities.ProcessorEventType
		wantStatus entities.CashoutStatus
		wantTxs    int
	}{
		{
			name:       "failed after paid is ignored",
			first:      entities.ProcessorEventPayoutPaid,
			second:     entities.ProcessorEventPayoutFailed,
			wantStatus: entities.CashoutStatusPaid,
			wantTxs:    2,
		},
		{
			name:       "paid after refund is ignored",
			first:      entities.ProcessorEventPayoutFailed,
			second:     entities.ProcessorEventPayoutPaid,
			wantStatus: entities.CashoutStatusRefunded,
			wantTxs:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := testhelpers.NewMemoryStore()
			store.SeedWallet(testUserID, "6000")
			request := reservedRequest(t, store, "6000")

			_, err := applyEvent(t, store, payoutEvent("evt_a", tt.first, request.ID))
			require.NoError(t, err)
			outcome, err := applyEvent(t, store, payoutEvent("evt_b", tt.second, request.ID))
			require.NoError(t, err)

			assert.Equal(t, entities.WebhookOutcomeNoop, outcome)
			assert.Equal(t, tt.wantStatus, store.Cashout(request.ID).Status)
			assert.Len(t, store.Transactions(testUserID), tt.wantTxs)
			assertLedgerConsistent(t, store, testUserID)
		})
	}
}

func TestWebhookReconciler_UnmatchedAndIgnored(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()

	outcome, err := applyEvent(t, store, payoutEvent("evt_1", entities.ProcessorEventPayoutPaid, uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, entities.WebhookOutcomeUnmatched, outcome)

	outcome, err = applyEvent(t, store, &entities.ProcessorEvent{ID: "evt_2", Type: "charge.refunded"})
	require.NoError(t, err)
	assert.Equal(t, entities.WebhookOutcomeIgnored, outcome)

	outcome, err = applyEvent(t, store, &entities.ProcessorEvent{ID: "evt_2", Type: "charge.refunded"})
	require.NoError(t, err)
	assert.Equal(t, entities.WebhookOutcomeDuplicate, outcome)
}

func TestWebhookReconciler_AccountUpdated(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	store.SeedDestination(&entities.DestinationAccount{
		UserID:            testUserID,
		ExternalAccountID: "acct_1",
		RequirementsDue:   []string{"external_account"},
	})

	event := &entities.ProcessorEvent{
		ID:   "evt_1",
		Type: entities.ProcessorEventAccountUpdated,
		Account: &entities.ProcessorAccount{
			ID:                     "acct_1",
			DetailsSubmitted:       true,
			PayoutsEnabled:         true,
			InstantPayoutsEligible: true,
		},
	}

	outcome, err := applyEvent(t, store, event)
	require.NoError(t, err)
	assert.Equal(t, entities.WebhookOutcomeApplied, outcome)

	event.ID = "evt_2"
	outcome, err = applyEvent(t, store, event)
	require.NoError(t, err)
	assert.Equal(t, entities.WebhookOutcomeNoop, outcome)

	event.ID = "evt_3"
	event.Account = &entities.ProcessorAccount{ID: "acct_unknown"}
	outcome, err = applyEvent(t, store, event)
	require.NoError(t, err)
	assert.Equal(t, entities.WebhookOutcomeUnmatched, outcome)
}
