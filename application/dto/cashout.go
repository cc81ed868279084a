package dto

import (
	"itcwallet/domain/entities"

	"github.com/shopspring/decimal"
)

// CashoutCommand is a user's request to convert tokens to currency
type CashoutCommand struct {
	UserID       string
	AmountTokens decimal.Decimal
	PayoutType   entities.PayoutType
}

// CashoutResult reports how far a cash-out got.
// A rejected cash-out carries its unpersisted request once a quote was computed,
// and no request when input or onboarding checks failed.
type CashoutResult struct {
	Request        *entities.CashoutRequest `json:"request,omitempty"`
	Status         entities.CashoutStatus   `json:"status"`
	Quote          *entities.CashoutQuote   `json:"quote,omitempty"`
	FailureCode    string                   `json:"failureCode,omitempty"`
	FailureMessage string                   `json:"failureMessage,omitempty"`
	Refunded       bool                     `json:"refunded"`
}

// RecoveryReport summarizes one pass over stale reservations
type RecoveryReport struct {
	Examined    int
	Resumed     int
	Compensated int
	Failed      int
}
