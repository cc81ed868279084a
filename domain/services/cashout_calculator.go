package services

import (
	"fmt"

	"itcwallet/domain/entities"

	"github.com/shopspring/decimal"
)

// FeeSchedule holds the conversion rate, fees and limits applied to cash-outs
type FeeSchedule struct {
	TokenUSDRate           decimal.Decimal
	PlatformFeeRate        decimal.Decimal
	InstantFeeRate         decimal.Decimal
	InstantFeeMinimum      decimal.Decimal
	MinimumCashoutTokens   decimal.Decimal
	ProcessorMinimumPayout decimal.Decimal
}

// DefaultFeeSchedule returns the production fee schedule
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		TokenUSDRate:           decimal.RequireFromString("0.01"),
		PlatformFeeRate:        decimal.RequireFromString("0.07"),
		InstantFeeRate:         decimal.RequireFromString("0.015"),
		InstantFeeMinimum:      decimal.RequireFromString("0.50"),
		MinimumCashoutTokens:   decimal.NewFromInt(1000),
		ProcessorMinimumPayout: decimal.RequireFromString("1.00"),
	}
}

// CalculateCashout computes the currency breakdown for converting amountTokens.
// Each component is rounded to currency precision and net is derived from the rounded parts.
func CalculateCashout(amountTokens decimal.Decimal, payoutType entities.PayoutType, schedule FeeSchedule) entities.CashoutQuote {
	gross := entities.RoundCurrency(amountTokens.Mul(schedule.TokenUSDRate))
	platformFee := entities.RoundCurrency(gross.Mul(schedule.PlatformFeeRate))

	expediteFee := decimal.Zero
	if payoutType == entities.PayoutTypeInstant {
		expediteFee = entities.RoundCurrency(decimal.Max(gross.Mul(schedule.InstantFeeRate), schedule.InstantFeeMinimum))
	}

	return entities.CashoutQuote{
		AmountTokens:        amountTokens,
		PayoutType:          payoutType,
		RequestedPayoutType: payoutType,
		Gross:               gross,
		PlatformFee:         platformFee,
		ExpediteFee:         expediteFee,
		Net:                 gross.Sub(platformFee).Sub(expediteFee),
	}
}

// ValidateCashoutAmount checks the token amount before any fee math
func ValidateCashoutAmount(amountTokens decimal.Decimal, schedule FeeSchedule) error {
	if !amountTokens.IsPositive() {
		return fmt.Errorf("%w: cash-out amount must be positive", entities.ErrInvalidAmount)
	}
	if !entities.HasCurrencyPrecision(amountTokens) {
		return fmt.Errorf("%w: %s has more than %d fraction digits", entities.ErrInvalidAmount, amountTokens, entities.CurrencyPrecision)
	}
	if amountTokens.LessThan(schedule.MinimumCashoutTokens) {
		return fmt.Errorf("%w: minimum is %s tokens", entities.ErrCashoutBelowMinimum, schedule.MinimumCashoutTokens.String())
	}
	return nil
}

// ValidateQuote rejects quotes whose net payout the processor would refuse
func ValidateQuote(quote entities.CashoutQuote, schedule FeeSchedule) error {
	if quote.Net.LessThan(schedule.ProcessorMinimumPayout) {
		return fmt.Errorf("%w: net payout %s is below %s", entities.ErrPayoutTooSmall,
			quote.Net.StringFixed(entities.CurrencyPrecision), schedule.ProcessorMinimumPayout.StringFixed(entities.CurrencyPrecision))
	}
	return nil
}

// EffectivePayoutType downgrades instant payouts to standard when the destination cannot receive them
func EffectivePayoutType(requested entities.PayoutType, destination *entities.DestinationAccount) entities.PayoutType {
	if requested == entities.PayoutTypeInstant && (destination == nil || !destination.SupportsInstant()) {
		return entities.PayoutTypeStandard
	}
	return requested
}
