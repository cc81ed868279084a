package entities

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is a request to change a user's balance by Amount
type LedgerEntry struct {
	UserID      string
	Type        TransactionType
	Amount      decimal.Decimal
	Reason      string
	ReferenceID *string
	Metadata    map[string]any
	USDValue    decimal.NullDecimal

	// DedupByReference skips the entry when a transaction with the same
	// (user, type, reference) exists, for types the store does not enforce uniqueness on
	DedupByReference bool
}

// LedgerResult is the outcome of applying a ledger entry
type LedgerResult struct {
	Balance       decimal.Decimal
	TransactionID uuid.UUID
	Transaction   *Transaction
	// Duplicate is true when an existing transaction matched the entry's reference
	// and nothing was written
	Duplicate bool
}

// Ref returns a pointer to s, or nil for an empty string
func Ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
