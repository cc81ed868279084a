package interfaces

import (
	"context"
	"time"

	"itcwallet/domain/entities"

	"github.com/google/uuid"
)

// PayoutProcessor is the external payment processor that holds destination
// accounts and moves real currency
type PayoutProcessor interface {
	CreateAccount(ctx context.Context, userID, email, country string) (*entities.ProcessorAccount, error)
	GetAccount(ctx context.Context, accountID string) (*entities.ProcessorAccount, error)
	CreateTransfer(ctx context.Context, req entities.TransferRequest) (*entities.ProcessorTransfer, error)
	// FindTransfer looks a transfer up by the idempotency key it was created with.
	// It returns nil without error when no such transfer exists.
	FindTransfer(ctx context.Context, idempotencyKey string) (*entities.ProcessorTransfer, error)
	ReverseTransfer(ctx context.Context, transferID string) error
	CreatePayout(ctx context.Context, req entities.PayoutRequest) (*entities.ProcessorPayout, error)
}

// WebhookVerifier authenticates processor webhook deliveries
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string, now time.Time) error
}

// WebhookEventCache is a fast, non-authoritative record of processed webhook event ids
type WebhookEventCache interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// LedgerService applies balance changes. Implementations must be called inside a unit of work.
type LedgerService interface {
	ApplyEntry(ctx context.Context, entry entities.LedgerEntry) (*entities.LedgerResult, error)
}

// CashoutService performs the cash-out state changes that must commit together with
// ledger entries. Implementations must be called inside a unit of work.
type CashoutService interface {
	// Reserve debits the request's tokens and stores the request as reserved
	Reserve(ctx context.Context, request *entities.CashoutRequest) (*entities.LedgerResult, error)
	// RecordTransfer moves a reserved request to transferring. Requests that already
	// moved on are returned unchanged.
	RecordTransfer(ctx context.Context, id uuid.UUID, transferID, payoutID string) (*entities.CashoutRequest, error)
	// Compensate marks an unfinished request failed and credits the reserved tokens back
	Compensate(ctx context.Context, id uuid.UUID, code, message string) (*entities.CashoutRequest, error)
}

// WebhookReconciler applies verified processor events to cash-out requests and destination accounts.
// Implementations must be called inside a unit of work.
type WebhookReconciler interface {
	Apply(ctx context.Context, event *entities.ProcessorEvent) (entities.WebhookOutcome, error)
}

// DestinationAccountService refreshes stored destination accounts from processor data
type DestinationAccountService interface {
	ApplyProcessorAccount(ctx context.Context, userID string, account *entities.ProcessorAccount) (*entities.DestinationAccount, bool, error)
}
