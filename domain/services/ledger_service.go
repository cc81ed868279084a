package services

import (
	"context"
	"fmt"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/events"
	"itcwallet/domain/interfaces"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ledgerService implements the single balance-changing operation of the wallet
type ledgerService struct {
	walletRepo      interfaces.WalletRepository
	transactionRepo interfaces.TransactionRepository
	eventPublisher  interfaces.EventPublisher
	tokenUSDRate    decimal.Decimal
	now             func() time.Time
}

// NewLedgerService creates a ledger service bound to the repositories of one unit of work
func NewLedgerService(
	walletRepo interfaces.WalletRepository,
	transactionRepo interfaces.TransactionRepository,
	eventPublisher interfaces.EventPublisher,
	tokenUSDRate decimal.Decimal,
) interfaces.LedgerService {
	return &ledgerService{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		eventPublisher:  eventPublisher,
		tokenUSDRate:    tokenUSDRate,
		now:             time.Now,
	}
}

// ApplyEntry locks the user's wallet, appends one transaction and moves the cached
// balance to the transaction's balanceAfter. Nothing is written when the entry fails.
func (s *ledgerService) ApplyEntry(ctx context.Context, entry entities.LedgerEntry) (*entities.LedgerResult, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.GetForUpdate(ctx, entry.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	if wallet.IsFrozen() && !entry.Type.AllowedOnFrozenWallet() {
		return nil, fmt.Errorf("%w: user %s", entities.ErrWalletFrozen, entry.UserID)
	}

	if entry.ReferenceID != nil && (entry.Type.RequiresUniqueReference() || entry.DedupByReference) {
		existing, err := s.transactionRepo.FindByReference(ctx, entry.UserID, entry.Type, *entry.ReferenceID)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing entry: %w", err)
		}
		if existing != nil {
			log.WithFields(log.Fields{
				"userId":          entry.UserID,
				"transactionType": entry.Type,
				"referenceId":     *entry.ReferenceID,
				"transactionId":   existing.ID,
			}).Info("Ledger entry already applied for reference, skipping")
			return &entities.LedgerResult{
				Balance:       wallet.TokenBalance,
				TransactionID: existing.ID,
				Transaction:   existing,
				Duplicate:     true,
			}, nil
		}
	}

	oldBalance := wallet.TokenBalance
	newBalance := oldBalance.Add(entry.Amount)
	if entry.Amount.IsNegative() && newBalance.IsNegative() {
		return nil, &entities.InsufficientBalanceError{
			UserID:    entry.UserID,
			Available: oldBalance,
			Requested: entry.Amount.Neg(),
		}
	}

	usdValue := entry.USDValue
	if !usdValue.Valid && s.tokenUSDRate.IsPositive() {
		usdValue = decimal.NewNullDecimal(entities.RoundCurrency(entry.Amount.Abs().Mul(s.tokenUSDRate)))
	}

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	tx := &entities.Transaction{
		ID:           uuid.New(),
		UserID:       entry.UserID,
		Type:         entry.Type,
		Amount:       entry.Amount,
		BalanceAfter: newBalance,
		USDValue:     usdValue,
		Reason:       entry.Reason,
		ReferenceID:  entry.ReferenceID,
		Metadata:     metadata,
		CreatedAt:    s.now(),
	}
	if err := tx.Validate(oldBalance); err != nil {
		return nil, fmt.Errorf("refusing inconsistent ledger entry: %w", err)
	}
	if err := s.transactionRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	wallet.TokenBalance = newBalance
	if countsAsEarned(entry) {
		wallet.LifetimeTokensEarned = wallet.LifetimeTokensEarned.Add(entry.Amount)
	}
	wallet.UpdatedAt = tx.CreatedAt
	if err := s.walletRepo.UpdateBalance(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to update wallet balance: %w", err)
	}

	event := events.BalanceChangeEvent{
		UserID:          entry.UserID,
		TransactionID:   tx.ID,
		OldBalance:      oldBalance,
		NewBalance:      newBalance,
		ChangeAmount:    entry.Amount,
		TransactionType: entry.Type,
		ReferenceID:     entry.ReferenceID,
	}
	if err := s.eventPublisher.Publish(event); err != nil {
		// notifications are best effort
		log.WithError(err).WithField("transactionId", tx.ID).Warn("Failed to publish balance change event")
	}

	log.WithFields(log.Fields{
		"userId":          entry.UserID,
		"transactionId":   tx.ID,
		"transactionType": entry.Type,
		"amount":          entry.Amount.String(),
		"balanceAfter":    newBalance.String(),
	}).Debug("Applied ledger entry")

	return &entities.LedgerResult{
		Balance:       newBalance,
		TransactionID: tx.ID,
		Transaction:   tx,
	}, nil
}

func validateEntry(entry entities.LedgerEntry) error {
	if entry.UserID == "" {
		return fmt.Errorf("%w: user id is required", entities.ErrInvalidEntry)
	}
	if !entry.Type.IsValid() {
		return fmt.Errorf("%w: unknown transaction type %q", entities.ErrInvalidEntry, entry.Type)
	}
	if entry.Amount.IsZero() {
		return fmt.Errorf("%w: amount cannot be zero", entities.ErrInvalidAmount)
	}
	if !entities.HasCurrencyPrecision(entry.Amount) {
		return fmt.Errorf("%w: %s has more than %d fraction digits", entities.ErrInvalidAmount, entry.Amount, entities.CurrencyPrecision)
	}
	if entry.Type.IsCreditType() && !entry.Amount.IsPositive() {
		return fmt.Errorf("%w: %s entries must be positive", entities.ErrInvalidAmount, entry.Type)
	}
	if entry.Type.IsDebitType() && !entry.Amount.IsNegative() {
		return fmt.Errorf("%w: %s entries must be negative", entities.ErrInvalidAmount, entry.Type)
	}
	if entry.ReferenceID != nil && *entry.ReferenceID == "" {
		return fmt.Errorf("%w: reference id cannot be empty", entities.ErrInvalidEntry)
	}
	return nil
}

func countsAsEarned(entry entities.LedgerEntry) bool {
	if entry.Type.IsEarningType() {
		return true
	}
	return entry.Type == entities.TransactionTypeAdminAdjustment && entry.Amount.IsPositive()
}
