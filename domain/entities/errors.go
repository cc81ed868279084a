package entities

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the ledger, cash-out and webhook flows.
// Callers branch on these with errors.Is; the struct errors below carry details and unwrap to them.
var (
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidEntry            = errors.New("invalid ledger entry")
	ErrWalletFrozen            = errors.New("wallet is frozen")
	ErrDuplicateEntry          = errors.New("ledger entry already exists for reference")
	ErrPayoutTooSmall          = errors.New("payout amount is below the processor minimum")
	ErrCashoutBelowMinimum     = errors.New("cash-out amount is below the minimum")
	ErrDestinationNotReady     = errors.New("destination account is not ready for payouts")
	ErrCashoutNotFound         = errors.New("cash-out request not found")
	ErrInvalidStateTransition  = errors.New("invalid cash-out state transition")
	ErrRewardCeilingExceeded   = errors.New("reward exceeds the allowed ceiling")
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")
	ErrDuplicateWebhookEvent   = errors.New("webhook event already processed")
	ErrProcessorTransient      = errors.New("payout processor temporarily unavailable")
	ErrProcessorPermanent      = errors.New("payout processor rejected the request")
)

// InsufficientBalanceError reports a debit that would take the balance below zero
type InsufficientBalanceError struct {
	UserID    string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for user %s: available %s, requested %s",
		e.UserID, e.Available.StringFixed(CurrencyPrecision), e.Requested.StringFixed(CurrencyPrecision))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// RewardCeilingError reports a computed reward whose value exceeds the abuse bound
type RewardCeilingError struct {
	Amount  decimal.Decimal
	Ceiling decimal.Decimal
}

func (e *RewardCeilingError) Error() string {
	return fmt.Sprintf("reward of %s tokens exceeds ceiling of %s tokens",
		e.Amount.StringFixed(CurrencyPrecision), e.Ceiling.StringFixed(CurrencyPrecision))
}

func (e *RewardCeilingError) Unwrap() error {
	return ErrRewardCeilingExceeded
}

// ProcessorError is returned by payout processor clients.
// Transient errors (network, timeout, 5xx, rate limiting) may be retried; permanent ones may not.
type ProcessorError struct {
	Op        string
	Code      string
	Message   string
	Transient bool
	Err       error
}

func (e *ProcessorError) Error() string {
	msg := fmt.Sprintf("processor %s failed", e.Op)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessorError) Unwrap() []error {
	kind := ErrProcessorPermanent
	if e.Transient {
		kind = ErrProcessorTransient
	}
	if e.Err != nil {
		return []error{kind, e.Err}
	}
	return []error{kind}
}

// FailureCode returns the code recorded on a failed cash-out
func (e *ProcessorError) FailureCode() string {
	if e.Code != "" {
		return e.Code
	}
	if e.Transient {
		return "processor_unavailable"
	}
	return "processor_rejected"
}

// CashoutFailedError is returned when the processor step of a cash-out failed.
// Refunded is true only once the compensating refund has been committed to the ledger.
type CashoutFailedError struct {
	CashoutRequestID string
	Refunded         bool
	Err              error
}

func (e *CashoutFailedError) Error() string {
	if e.Refunded {
		return fmt.Sprintf("cash-out %s failed, tokens have been returned to your balance: %v", e.CashoutRequestID, e.Err)
	}
	return fmt.Sprintf("cash-out %s failed, refund pending: %v", e.CashoutRequestID, e.Err)
}

func (e *CashoutFailedError) Unwrap() error {
	return e.Err
}
