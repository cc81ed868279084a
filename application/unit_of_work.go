package application

import (
	"context"
	"fmt"

	"itcwallet/domain/interfaces"
	"itcwallet/domain/services"

	"github.com/shopspring/decimal"
)

// runInUnitOfWork begins a unit of work, runs fn and commits if fn succeeds.
// Anything fn did is rolled back when it returns an error.
func runInUnitOfWork(ctx context.Context, factory interfaces.UnitOfWorkFactory, fn func(uow interfaces.UnitOfWork) error) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// readOnly runs fn in a unit of work that is always rolled back
func readOnly(ctx context.Context, factory interfaces.UnitOfWorkFactory, fn func(uow interfaces.UnitOfWork) error) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return fn(uow)
}

// domainServices are the domain services bound to one unit of work
type domainServices struct {
	ledger       interfaces.LedgerService
	cashouts     interfaces.CashoutService
	destinations interfaces.DestinationAccountService
	reconciler   interfaces.WebhookReconciler
}

func newDomainServices(uow interfaces.UnitOfWork, tokenUSDRate decimal.Decimal) *domainServices {
	ledger := services.NewLedgerService(
		uow.WalletRepository(),
		uow.TransactionRepository(),
		uow.EventBus(),
		tokenUSDRate,
	)
	destinations := services.NewDestinationAccountService(uow.DestinationAccountRepository(), uow.EventBus())

	return &domainServices{
		ledger:       ledger,
		cashouts:     services.NewCashoutService(uow.CashoutRepository(), ledger, uow.EventBus()),
		destinations: destinations,
		reconciler: services.NewWebhookReconciler(
			uow.CashoutRepository(),
			uow.WebhookEventRepository(),
			ledger,
			destinations,
			uow.EventBus(),
		),
	}
}
