package events

import (
	"itcwallet/domain/entities"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange       EventType = "balance_change"
	EventTypeCashoutStatusChange EventType = "cashout_status_change"
	EventTypeDestinationUpdated  EventType = "destination_account_updated"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent is published after a ledger entry is committed
type BalanceChangeEvent struct {
	UserID          string                   `json:"userId"`
	TransactionID   uuid.UUID                `json:"transactionId"`
	OldBalance      decimal.Decimal          `json:"oldBalance"`
	NewBalance      decimal.Decimal          `json:"newBalance"`
	ChangeAmount    decimal.Decimal          `json:"changeAmount"`
	TransactionType entities.TransactionType `json:"transactionType"`
	ReferenceID     *string                  `json:"referenceId,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// CashoutStatusChangeEvent represents a cash-out state transition
type CashoutStatusChangeEvent struct {
	CashoutRequestID uuid.UUID              `json:"cashoutRequestId"`
	UserID           string                 `json:"userId"`
	OldStatus        entities.CashoutStatus `json:"oldStatus"`
	NewStatus        entities.CashoutStatus `json:"newStatus"`
	NetCurrency      decimal.Decimal        `json:"netCurrency"`
	FailureCode      *string                `json:"failureCode,omitempty"`
}

func (e CashoutStatusChangeEvent) Type() EventType {
	return EventTypeCashoutStatusChange
}

// DestinationAccountUpdatedEvent is published when processor capability flags change
type DestinationAccountUpdatedEvent struct {
	UserID                 string `json:"userId"`
	ExternalAccountID      string `json:"externalAccountId"`
	PayoutsEnabled         bool   `json:"payoutsEnabled"`
	InstantPayoutsEligible bool   `json:"instantPayoutsEligible"`
}

func (e DestinationAccountUpdatedEvent) Type() EventType {
	return EventTypeDestinationUpdated
}
