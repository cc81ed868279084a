package application

import (
	"context"
	"fmt"

	"itcwallet/domain/entities"
	"itcwallet/domain/interfaces"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DestinationAccountApp manages the processor accounts users get paid out to
type DestinationAccountApp struct {
	uowFactory   interfaces.UnitOfWorkFactory
	processor    interfaces.PayoutProcessor
	tokenUSDRate decimal.Decimal
}

// NewDestinationAccountApp creates a new destination account application service
func NewDestinationAccountApp(
	uowFactory interfaces.UnitOfWorkFactory,
	processor interfaces.PayoutProcessor,
	tokenUSDRate decimal.Decimal,
) *DestinationAccountApp {
	return &DestinationAccountApp{
		uowFactory:   uowFactory,
		processor:    processor,
		tokenUSDRate: tokenUSDRate,
	}
}

// GetDestinationAccount returns the user's destination account or nil if there is none
func (a *DestinationAccountApp) GetDestinationAccount(ctx context.Context, userID string) (*entities.DestinationAccount, error) {
	var account *entities.DestinationAccount
	err := readOnly(ctx, a.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		account, err = uow.DestinationAccountRepository().GetByUserID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get destination account: %w", err)
	}
	return account, nil
}

// SetupDestinationAccount creates a processor account for the user if they have none.
// Calling it again returns the existing account.
func (a *DestinationAccountApp) SetupDestinationAccount(ctx context.Context, userID, email, country string) (*entities.DestinationAccount, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", entities.ErrInvalidEntry)
	}

	existing, err := a.GetDestinationAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	account, err := a.processor.CreateAccount(ctx, userID, email, country)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor account: %w", err)
	}

	destination, err := a.store(ctx, userID, account)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"userId":            userID,
		"externalAccountId": account.ID,
	}).Info("Created destination account")
	return destination, nil
}

// SyncDestinationAccount refreshes the stored account from the processor
func (a *DestinationAccountApp) SyncDestinationAccount(ctx context.Context, userID string) (*entities.DestinationAccount, error) {
	existing, err := a.GetDestinationAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: no destination account has been set up", entities.ErrDestinationNotReady)
	}

	account, err := a.processor.GetAccount(ctx, existing.ExternalAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch processor account: %w", err)
	}
	return a.store(ctx, userID, account)
}

func (a *DestinationAccountApp) store(ctx context.Context, userID string, account *entities.ProcessorAccount) (*entities.DestinationAccount, error) {
	var destination *entities.DestinationAccount
	err := runInUnitOfWork(ctx, a.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		destination, _, err = newDomainServices(uow, a.tokenUSDRate).destinations.ApplyProcessorAccount(ctx, userID, account)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store destination account: %w", err)
	}
	return destination, nil
}
