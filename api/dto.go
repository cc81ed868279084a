package api

import (
	"itcwallet/application/dto"
	"itcwallet/domain/entities"

	"github.com/shopspring/decimal"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string             `json:"error"`
	Code    string             `json:"code,omitempty"`
	Details string             `json:"details,omitempty"`
	Cashout *dto.CashoutResult `json:"cashout,omitempty"`
}

// CashoutRequestBody is the body of the quote and cash-out endpoints
type CashoutRequestBody struct {
	AmountTokens decimal.Decimal     `json:"amountTokens"`
	PayoutType   entities.PayoutType `json:"payoutType"`
}

// DestinationAccountRequestBody is the body of the destination account setup endpoint
type DestinationAccountRequestBody struct {
	Email   string `json:"email"`
	Country string `json:"country"`
}

// LedgerEntryRequestBody is the body of the internal ledger entry endpoint
type LedgerEntryRequestBody struct {
	UserID           string                   `json:"userId"`
	Type             entities.TransactionType `json:"type"`
	Amount           decimal.Decimal          `json:"amount"`
	Reason           string                   `json:"reason"`
	ReferenceID      *string                  `json:"referenceId"`
	Metadata         map[string]any           `json:"metadata"`
	DedupByReference bool                     `json:"dedupByReference"`
}

// WalletStatusRequestBody is the body of the internal wallet status endpoint
type WalletStatusRequestBody struct {
	Status entities.WalletStatus `json:"status"`
}

// WebhookResponse acknowledges a processor webhook delivery
type WebhookResponse struct {
	Received bool                    `json:"received"`
	Outcome  entities.WebhookOutcome `json:"outcome"`
}
