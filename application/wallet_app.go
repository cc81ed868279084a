package application

import (
	"context"
	"fmt"

	"itcwallet/application/dto"
	"itcwallet/domain/entities"
	"itcwallet/domain/interfaces"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// WalletApp exposes the wallet operations other services and users call
type WalletApp struct {
	uowFactory   interfaces.UnitOfWorkFactory
	tokenUSDRate decimal.Decimal
}

// NewWalletApp creates a new wallet application service
func NewWalletApp(uowFactory interfaces.UnitOfWorkFactory, tokenUSDRate decimal.Decimal) *WalletApp {
	return &WalletApp{
		uowFactory:   uowFactory,
		tokenUSDRate: tokenUSDRate,
	}
}

// Credit applies a signed ledger entry submitted by another service. Earning types and
// refunds carry positive amounts and redemptions negative ones. Redemptions that would
// overdraw the wallet fail with ErrInsufficientBalance.
func (a *WalletApp) Credit(ctx context.Context, cmd dto.CreditCommand) (*dto.LedgerEntryResult, error) {
	if !cmd.Type.IsExternalEntryType() {
		return nil, fmt.Errorf("%w: %s entries cannot be submitted directly", entities.ErrInvalidEntry, cmd.Type)
	}

	return a.apply(ctx, entities.LedgerEntry{
		UserID:           cmd.UserID,
		Type:             cmd.Type,
		Amount:           cmd.Amount,
		Reason:           cmd.Reason,
		ReferenceID:      cmd.ReferenceID,
		Metadata:         cmd.Metadata,
		DedupByReference: cmd.DedupByReference,
	})
}

// AdjustBalance applies a signed admin adjustment. It is allowed on frozen wallets.
func (a *WalletApp) AdjustBalance(ctx context.Context, userID string, amount decimal.Decimal, reason string) (*dto.LedgerEntryResult, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: adjustments need a reason", entities.ErrInvalidEntry)
	}

	return a.apply(ctx, entities.LedgerEntry{
		UserID: userID,
		Type:   entities.TransactionTypeAdminAdjustment,
		Amount: amount,
		Reason: reason,
	})
}

func (a *WalletApp) apply(ctx context.Context, entry entities.LedgerEntry) (*dto.LedgerEntryResult, error) {
	var result *entities.LedgerResult
	err := runInUnitOfWork(ctx, a.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		result, err = newDomainServices(uow, a.tokenUSDRate).ledger.ApplyEntry(ctx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	fields := log.Fields{
		"userId":          entry.UserID,
		"transactionType": entry.Type,
		"amount":          entry.Amount.String(),
		"balance":         result.Balance.String(),
	}
	if result.Duplicate {
		log.WithFields(fields).Info("Ledger entry already applied for reference")
	} else {
		log.WithFields(fields).Info("Applied ledger entry")
	}

	return &dto.LedgerEntryResult{
		UserID:        entry.UserID,
		Balance:       result.Balance,
		TransactionID: result.TransactionID,
		Duplicate:     result.Duplicate,
	}, nil
}

// GetWalletSnapshot returns the user's balances. Users without a wallet get a zero snapshot.
func (a *WalletApp) GetWalletSnapshot(ctx context.Context, userID string) (*entities.WalletSnapshot, error) {
	var wallet *entities.Wallet
	err := readOnly(ctx, a.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		wallet, err = uow.WalletRepository().GetByUserID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	if wallet == nil {
		wallet = entities.NewWallet(userID)
	}
	return wallet.Snapshot(), nil
}

// GetTransactionHistory returns one page of the user's transactions, newest first
func (a *WalletApp) GetTransactionHistory(ctx context.Context, userID string, limit, offset int) (*dto.TransactionPage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	page := &dto.TransactionPage{Limit: limit, Offset: offset}
	err := readOnly(ctx, a.uowFactory, func(uow interfaces.UnitOfWork) error {
		txRepo := uow.TransactionRepository()

		transactions, err := txRepo.GetByUser(ctx, userID, limit, offset)
		if err != nil {
			return err
		}
		total, err := txRepo.CountByUser(ctx, userID)
		if err != nil {
			return err
		}

		page.Transactions = transactions
		page.Total = total
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}

	if page.Transactions == nil {
		page.Transactions = []*entities.Transaction{}
	}
	return page, nil
}

// VerifyWallet replays the user's ledger and compares it with the cached balance
func (a *WalletApp) VerifyWallet(ctx context.Context, userID string) (*dto.WalletVerification, error) {
	var (
		wallet       *entities.Wallet
		transactions []*entities.Transaction
	)
	err := readOnly(ctx, a.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		if wallet, err = uow.WalletRepository().GetByUserID(ctx, userID); err != nil {
			return err
		}
		transactions, err = uow.TransactionRepository().GetAllByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet for verification: %w", err)
	}

	if wallet == nil {
		wallet = entities.NewWallet(userID)
	}

	replayed, replayErr := entities.ReplayBalance(transactions)
	verification := &dto.WalletVerification{
		UserID:          userID,
		CachedBalance:   wallet.TokenBalance,
		ReplayedBalance: replayed,
		Transactions:    len(transactions),
		Consistent:      replayErr == nil && replayed.Equal(wallet.TokenBalance),
	}

	if !verification.Consistent {
		log.WithFields(log.Fields{
			"userId":          userID,
			"cachedBalance":   wallet.TokenBalance.String(),
			"replayedBalance": replayed.String(),
			"error":           replayErr,
		}).Error("Wallet balance does not match its ledger")
	}
	return verification, nil
}

// SetWalletStatus freezes or unfreezes a wallet
func (a *WalletApp) SetWalletStatus(ctx context.Context, userID string, status entities.WalletStatus) error {
	if status != entities.WalletStatusActive && status != entities.WalletStatusFrozen {
		return fmt.Errorf("%w: unknown wallet status %q", entities.ErrInvalidEntry, status)
	}

	err := runInUnitOfWork(ctx, a.uowFactory, func(uow interfaces.UnitOfWork) error {
		return uow.WalletRepository().SetStatus(ctx, userID, status)
	})
	if err != nil {
		return fmt.Errorf("failed to set wallet status: %w", err)
	}

	log.WithFields(log.Fields{
		"userId": userID,
		"status": status,
	}).Info("Wallet status changed")
	return nil
}
