package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency used for all payouts
const PayoutCurrency = "usd"

// TransferRequest moves funds from the platform balance to a destination account
type TransferRequest struct {
	Amount               decimal.Decimal
	Currency             string
	DestinationAccountID string
	IdempotencyKey       string
	Metadata             map[string]string
}

// ProcessorTransfer is a transfer as reported by the processor
type ProcessorTransfer struct {
	ID          string
	Amount      decimal.Decimal
	Destination string
	Reversed    bool
}

// PayoutRequest pays out funds held by a destination account to the user's bank or card
type PayoutRequest struct {
	Amount               decimal.Decimal
	Currency             string
	DestinationAccountID string
	Method               PayoutType
	IdempotencyKey       string
	Metadata             map[string]string
}

// ProcessorPayout is a payout as reported by the processor
type ProcessorPayout struct {
	ID          string
	Status      string
	ArrivalDate *time.Time
}

// ProcessorEventType identifies webhook events the reconciler understands
type ProcessorEventType string

const (
	ProcessorEventPayoutPaid     ProcessorEventType = "payout.paid"
	ProcessorEventPayoutFailed   ProcessorEventType = "payout.failed"
	ProcessorEventAccountUpdated ProcessorEventType = "account.updated"
)

// ProcessorEvent is a verified, decoded webhook delivery
type ProcessorEvent struct {
	ID        string
	Type      ProcessorEventType
	CreatedAt time.Time

	// Payout events
	CashoutRequestID *uuid.UUID
	PayoutID         string
	FailureCode      string
	FailureMessage   string
	ArrivalDate      *time.Time

	// Account events
	Account *ProcessorAccount
}

// WebhookOutcome records what processing a webhook event did
type WebhookOutcome string

const (
	WebhookOutcomeApplied   WebhookOutcome = "applied"
	WebhookOutcomeNoop      WebhookOutcome = "noop"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeUnmatched WebhookOutcome = "unmatched"
)

// WebhookEventRecord is the durable idempotency record of a processed webhook event
type WebhookEventRecord struct {
	EventID          string             `db:"event_id"`
	EventType        ProcessorEventType `db:"event_type"`
	CashoutRequestID *uuid.UUID         `db:"cashout_request_id"`
	Outcome          WebhookOutcome     `db:"outcome"`
	ReceivedAt       time.Time          `db:"received_at"`
}
