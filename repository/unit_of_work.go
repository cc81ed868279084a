package repository

import (
	"context"
	"errors"
	"fmt"

	"itcwallet/database"
	"itcwallet/domain/interfaces"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// PublisherFactory returns a fresh transactional publisher for each unit of work
type PublisherFactory func() interfaces.TransactionalEventPublisher

// unitOfWork implements interfaces.UnitOfWork on a pgx transaction
type unitOfWork struct {
	db                     *database.DB
	tx                     pgx.Tx
	ctx                    context.Context
	transactionalPublisher interfaces.TransactionalEventPublisher
	walletRepo             interfaces.WalletRepository
	transactionRepo        interfaces.TransactionRepository
	cashoutRepo            interfaces.CashoutRepository
	destinationRepo        interfaces.DestinationAccountRepository
	webhookEventRepo       interfaces.WebhookEventRepository
}

type unitOfWorkFactory struct {
	db           *database.DB
	newPublisher PublisherFactory
}

// NewUnitOfWorkFactory creates a factory whose units of work publish through newPublisher
func NewUnitOfWorkFactory(db *database.DB, newPublisher PublisherFactory) interfaces.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:           db,
		newPublisher: newPublisher,
	}
}

// Create returns a unit of work that has not begun yet
func (f *unitOfWorkFactory) Create() interfaces.UnitOfWork {
	return &unitOfWork{
		db:                     f.db,
		transactionalPublisher: f.newPublisher(),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.walletRepo = NewWalletRepositoryScoped(tx)
	u.transactionRepo = NewTransactionRepositoryScoped(tx)
	u.cashoutRepo = NewCashoutRepositoryScoped(tx)
	u.destinationRepo = NewDestinationAccountRepositoryScoped(tx)
	u.webhookEventRepo = NewWebhookEventRepositoryScoped(tx)

	return nil
}

// Commit commits the transaction and then flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		u.transactionalPublisher.Discard()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// the data is committed, so a failed publish is only logged
	if err := u.transactionalPublisher.Flush(u.ctx); err != nil {
		log.WithError(err).Error("Failed to flush events after commit")
	}

	return nil
}

// Rollback rolls back the transaction and discards pending events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	u.transactionalPublisher.Discard()

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

func (u *unitOfWork) WalletRepository() interfaces.WalletRepository {
	if u.walletRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.walletRepo
}

func (u *unitOfWork) TransactionRepository() interfaces.TransactionRepository {
	if u.transactionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionRepo
}

func (u *unitOfWork) CashoutRepository() interfaces.CashoutRepository {
	if u.cashoutRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.cashoutRepo
}

func (u *unitOfWork) DestinationAccountRepository() interfaces.DestinationAccountRepository {
	if u.destinationRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.destinationRepo
}

func (u *unitOfWork) WebhookEventRepository() interfaces.WebhookEventRepository {
	if u.webhookEventRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.webhookEventRepo
}

// EventBus returns the transactional publisher of this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.transactionalPublisher == nil {
		panic("transactional publisher not configured")
	}
	return u.transactionalPublisher
}
