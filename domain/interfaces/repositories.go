package interfaces

import (
	"context"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/events"

	"github.com/google/uuid"
)

// WalletRepository defines the interface for wallet data access
type WalletRepository interface {
	// GetForUpdate returns the user's wallet, creating an empty one if needed,
	// and holds a row lock on it until the surrounding transaction ends
	GetForUpdate(ctx context.Context, userID string) (*entities.Wallet, error)
	// GetByUserID returns nil when the user has no wallet yet
	GetByUserID(ctx context.Context, userID string) (*entities.Wallet, error)
	UpdateBalance(ctx context.Context, wallet *entities.Wallet) error
	SetStatus(ctx context.Context, userID string, status entities.WalletStatus) error
}

// TransactionRepository defines the interface for the append-only ledger
type TransactionRepository interface {
	Create(ctx context.Context, tx *entities.Transaction) error
	FindByReference(ctx context.Context, userID string, txType entities.TransactionType, referenceID string) (*entities.Transaction, error)
	// GetByUser returns a page of transactions, newest first
	GetByUser(ctx context.Context, userID string, limit, offset int) ([]*entities.Transaction, error)
	// GetAllByUser returns every transaction in ledger order, oldest first
	GetAllByUser(ctx context.Context, userID string) ([]*entities.Transaction, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// CashoutRepository defines the interface for cash-out request data access
type CashoutRepository interface {
	Create(ctx context.Context, request *entities.CashoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.CashoutRequest, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.CashoutRequest, error)
	Update(ctx context.Context, request *entities.CashoutRequest) error
	// GetStaleReserved returns reserved requests created before the cutoff, oldest first
	GetStaleReserved(ctx context.Context, requestedBefore time.Time, limit int) ([]*entities.CashoutRequest, error)
}

// DestinationAccountRepository defines the interface for payout destination data access
type DestinationAccountRepository interface {
	GetByUserID(ctx context.Context, userID string) (*entities.DestinationAccount, error)
	GetByExternalID(ctx context.Context, externalAccountID string) (*entities.DestinationAccount, error)
	Upsert(ctx context.Context, account *entities.DestinationAccount) error
}

// WebhookEventRepository stores the ids of processed processor events
type WebhookEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	// Record returns entities.ErrDuplicateWebhookEvent if the event id was already recorded
	Record(ctx context.Context, record *entities.WebhookEventRecord) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher holds events until the surrounding transaction commits
type TransactionalEventPublisher interface {
	EventPublisher
	Flush(ctx context.Context) error
	Discard()
}
