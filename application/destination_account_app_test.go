package application

import (
	"context"
	"errors"
	"testing"

	"itcwallet/domain/entities"
	"itcwallet/domain/events"
	"itcwallet/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDestinationAccountApp_SetupIsIdempotent(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	processor := new(testhelpers.MockPayoutProcessor)
	processor.On("CreateAccount", mock.Anything, testUserID, "maker@example.com", "US").
		Return(&entities.ProcessorAccount{ID: "acct_123", DetailsSubmitted: false, RequirementsDue: []string{"external_account"}}, nil).
		Once()
	app := NewDestinationAccountApp(store, processor, d("0.01"))

	first, err := app.SetupDestinationAccount(context.Background(), testUserID, "maker@example.com", "US")
	require.NoError(t, err)
	assert.Equal(t, "acct_123", first.ExternalAccountID)
	assert.False(t, first.IsReady())
	assert.Equal(t, []string{"external_account"}, first.RequirementsDue)

	second, err := app.SetupDestinationAccount(context.Background(), testUserID, "maker@example.com", "US")
	require.NoError(t, err)
	assert.Equal(t, first.ExternalAccountID, second.ExternalAccountID)
	processor.AssertExpectations(t)
}

func TestDestinationAccountApp_SetupProcessorFailure(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	processor := new(testhelpers.MockPayoutProcessor)
	processor.On("CreateAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &entities.ProcessorError{Op: "create account", Transient: true, Err: errors.New("connection reset")})
	app := NewDestinationAccountApp(store, processor, d("0.01"))

	_, err := app.SetupDestinationAccount(context.Background(), testUserID, "maker@example.com", "US")
	assert.ErrorIs(t, err, entities.ErrProcessorTransient)

	account, err := app.GetDestinationAccount(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestDestinationAccountApp_Sync(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewMemoryStore()
	store.SeedDestination(&entities.DestinationAccount{UserID: testUserID, ExternalAccountID: "acct_123"})
	processor := new(testhelpers.MockPayoutProcessor)
	processor.On("GetAccount", mock.Anything, "acct_123").Return(&entities.ProcessorAccount{
		ID:                     "acct_123",
		DetailsSubmitted:       true,
		PayoutsEnabled:         true,
		InstantPayoutsEligible: true,
	}, nil)
	app := NewDestinationAccountApp(store, processor, d("0.01"))

	account, err := app.SyncDestinationAccount(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, account.IsReady())
	assert.True(t, account.SupportsInstant())

	var updates int
	for _, event := range store.Published() {
		if _, ok := event.(events.DestinationAccountUpdatedEvent); ok {
			updates++
		}
	}
	assert.Equal(t, 1, updates)

	_, err = app.SyncDestinationAccount(context.Background(), "user-without-account")
	assert.ErrorIs(t, err, entities.ErrDestinationNotReady)
}
