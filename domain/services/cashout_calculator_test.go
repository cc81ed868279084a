package services

import (
	"testing"

	"itcwallet/domain/entities"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateCashout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		amount      string
		payoutType  entities.PayoutType
		gross       string
		platformFee string
		expediteFee string
		net         string
	}{
		{
			name:        "standard payout of 6000 tokens",
			amount:      "6000",
			payoutType:  entities.PayoutTypeStandard,
			gross:       "60.00",
			platformFee: "4.20",
			expediteFee: "0",
			net:         "55.80",
		},
		{
			name:        "instant payout uses percentage fee above the minimum",
			amount:      "6000",
			payoutType:  entities.PayoutTypeInstant,
			gross:       "60.00",
			platformFee: "4.20",
			expediteFee: "0.90",
			net:         "54.90",
		},
		{
			name:        "instant payout falls back to minimum fee",
			amount:      "1000",
			payoutType:  entities.PayoutTypeInstant,
			gross:       "10.00",
			platformFee: "0.70",
			expediteFee: "0.50",
			net:         "8.80",
		},
		{
			name:        "platform fee rounds half up",
			amount:      "1050",
			payoutType:  entities.PayoutTypeStandard,
			gross:       "10.50",
			platformFee: "0.74",
			expediteFee: "0",
			net:         "9.76",
		},
		{
			name:        "fractional tokens",
			amount:      "1234.56",
			payoutType:  entities.PayoutTypeStandard,
			gross:       "12.35",
			platformFee: "0.86",
			expediteFee: "0",
			net:         "11.49",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			quote := CalculateCashout(d(tt.amount), tt.payoutType, DefaultFeeSchedule())

			assert.True(t, d(tt.gross).Equal(quote.Gross), "gross: got %s", quote.Gross)
			assert.True(t, d(tt.platformFee).Equal(quote.PlatformFee), "platform fee: got %s", quote.PlatformFee)
			assert.True(t, d(tt.expediteFee).Equal(quote.ExpediteFee), "expedite fee: got %s", quote.ExpediteFee)
			assert.True(t, d(tt.net).Equal(quote.Net), "net: got %s", quote.Net)
			assert.Equal(t, tt.payoutType, quote.PayoutType)
		})
	}
}

func TestCalculateCashout_ComponentsAddUp(t *testing.T) {
	t.Parallel()

	schedule := DefaultFeeSchedule()
	for _, amount := range []string{"1000", "1001.01", "2500.55", "6000", "9999.99", "123456.78"} {
		for _, payoutType := range []entities.PayoutType{entities.PayoutTypeStandard, entities.PayoutTypeInstant} {
			quote := CalculateCashout(d(amount), payoutType, schedule)

			sum := quote.Net.Add(quote.PlatformFee).Add(quote.ExpediteFee)
			assert.True(t, quote.Gross.Equal(sum), "%s %s: gross %s != %s", amount, payoutType, quote.Gross, sum)
			for _, part := range []decimal.Decimal{quote.Gross, quote.PlatformFee, quote.ExpediteFee, quote.Net} {
				assert.True(t, entities.HasCurrencyPrecision(part))
				assert.False(t, part.IsNegative())
			}
		}
	}
}

func TestValidateCashoutAmount(t *testing.T) {
	t.Parallel()

	schedule := DefaultFeeSchedule()
	tests := []struct {
		name    string
		amount  string
		wantErr error
	}{
		{name: "at minimum", amount: "1000"},
		{name: "below minimum", amount: "999.99", wantErr: entities.ErrCashoutBelowMinimum},
		{name: "zero", amount: "0", wantErr: entities.ErrInvalidAmount},
		{name: "negative", amount: "-1500", wantErr: entities.ErrInvalidAmount},
		{name: "too precise", amount: "1500.001", wantErr: entities.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateCashoutAmount(d(tt.amount), schedule)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateQuote_PayoutTooSmall(t *testing.T) {
	t.Parallel()

	schedule := DefaultFeeSchedule()
	schedule.MinimumCashoutTokens = decimal.NewFromInt(100)

	quote := CalculateCashout(d("150"), entities.PayoutTypeInstant, schedule)
	require.True(t, quote.Net.LessThan(schedule.ProcessorMinimumPayout))

	err := ValidateQuote(quote, schedule)
	assert.ErrorIs(t, err, entities.ErrPayoutTooSmall)

	assert.NoError(t, ValidateQuote(CalculateCashout(d("1000"), entities.PayoutTypeStandard, schedule), schedule))
}

func TestEffectivePayoutType(t *testing.T) {
	t.Parallel()

	eligible := &entities.DestinationAccount{PayoutsEnabled: true, InstantPayoutsEligible: true}
	standardOnly := &entities.DestinationAccount{PayoutsEnabled: true}

	assert.Equal(t, entities.PayoutTypeInstant, EffectivePayoutType(entities.PayoutTypeInstant, eligible))
	assert.Equal(t, entities.PayoutTypeStandard, EffectivePayoutType(entities.PayoutTypeInstant, standardOnly))
	assert.Equal(t, entities.PayoutTypeStandard, EffectivePayoutType(entities.PayoutTypeInstant, nil))
	assert.Equal(t, entities.PayoutTypeStandard, EffectivePayoutType(entities.PayoutTypeStandard, eligible))
}
