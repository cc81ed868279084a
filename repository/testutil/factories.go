package testutil

import (
	"context"
	"testing"
	"time"

	"itcwallet/database"
	"itcwallet/domain/entities"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// CreateTestCashoutRequest builds a reserved 6000 token standard cash-out
func CreateTestCashoutRequest(userID string) *entities.CashoutRequest {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &entities.CashoutRequest{
		ID:                   uuid.New(),
		UserID:               userID,
		DestinationAccountID: "acct_test",
		AmountTokens:         decimal.NewFromInt(6000),
		GrossCurrency:        decimal.RequireFromString("60.00"),
		PlatformFeeCurrency:  decimal.RequireFromString("4.20"),
		ExpediteFeeCurrency:  decimal.Zero,
		NetCurrency:          decimal.RequireFromString("55.80"),
		PayoutType:           entities.PayoutTypeStandard,
		Status:               entities.CashoutStatusReserved,
		RequestedAt:          now,
		UpdatedAt:            now,
	}
}

// CreateTestDestinationAccount builds a payout-ready destination account
func CreateTestDestinationAccount(userID, externalID string) *entities.DestinationAccount {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &entities.DestinationAccount{
		UserID:                 userID,
		ExternalAccountID:      externalID,
		OnboardingComplete:     true,
		PayoutsEnabled:         true,
		InstantPayoutsEligible: false,
		RequirementsDue:        []string{},
		LastSyncedAt:           now,
		CreatedAt:              now,
	}
}

// EnsureWallet inserts an empty wallet row
func EnsureWallet(t *testing.T, db *database.DB, userID string) {
	t.Helper()
	_, err := db.Exec(context.Background(), `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID)
	require.NoError(t, err)
}
