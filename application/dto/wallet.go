package dto

import (
	"itcwallet/domain/entities"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditCommand asks for tokens to be added to a user's wallet
type CreditCommand struct {
	UserID      string
	Type        entities.TransactionType
	Amount      decimal.Decimal
	Reason      string
	ReferenceID *string
	Metadata    map[string]any
	// DedupByReference makes a repeated ReferenceID a no-op for types that allow repeats
	DedupByReference bool
}

// LedgerEntryResult is returned after a credit or adjustment
type LedgerEntryResult struct {
	UserID        string          `json:"userId"`
	Balance       decimal.Decimal `json:"balance"`
	TransactionID uuid.UUID       `json:"transactionId"`
	Duplicate     bool            `json:"duplicate"`
}

// TransactionPage is one page of a user's transaction history, newest first
type TransactionPage struct {
	Transactions []*entities.Transaction `json:"transactions"`
	Total        int64                   `json:"total"`
	Limit        int                     `json:"limit"`
	Offset       int                     `json:"offset"`
}

// WalletVerification compares the cached balance with a replay of the ledger
type WalletVerification struct {
	UserID          string          `json:"userId"`
	CachedBalance   decimal.Decimal `json:"cachedBalance"`
	ReplayedBalance decimal.Decimal `json:"replayedBalance"`
	Transactions    int             `json:"transactions"`
	Consistent      bool            `json:"consistent"`
}
