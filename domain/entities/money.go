package entities

import "github.com/shopspring/decimal"

// CurrencyPrecision is the number of fraction digits kept for token and currency amounts
const CurrencyPrecision int32 = 2

// RoundCurrency rounds half away from zero to CurrencyPrecision digits,
// which is round-half-up for the non-negative amounts money math produces
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPrecision)
}

// HasCurrencyPrecision reports whether d is representable with CurrencyPrecision fraction digits
func HasCurrencyPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(CurrencyPrecision))
}
