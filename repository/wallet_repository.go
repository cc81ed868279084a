package repository

import (
	"context"
	"errors"
	"fmt"

	"itcwallet/domain/entities"

	"github.com/jackc/pgx/v5"
)

const walletColumns = `user_id, token_balance, legacy_points_balance, lifetime_tokens_earned,
	lifetime_points_earned, status, created_at, updated_at`

// WalletRepository implements interfaces.WalletRepository
type WalletRepository struct {
	q Queryable
}

// NewWalletRepositoryScoped creates a wallet repository on a transaction or pool
func NewWalletRepositoryScoped(q Queryable) *WalletRepository {
	return &WalletRepository{q: q}
}

// GetForUpdate creates the wallet row if needed and locks it until the transaction ends
func (r *WalletRepository) GetForUpdate(ctx context.Context, userID string) (*entities.Wallet, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO wallets (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet for user %s: %w", userID, err)
	}

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	wallet, err := scanWallet(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet for user %s: %w", userID, err)
	}
	return wallet, nil
}

// GetByUserID returns nil when the user has no wallet
func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*entities.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	wallet, err := scanWallet(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet for user %s: %w", userID, err)
	}
	return wallet, nil
}

// UpdateBalance writes the cached balances of a locked wallet
func (r *WalletRepository) UpdateBalance(ctx context.Context, wallet *entities.Wallet) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE wallets
		SET token_balance = $2,
			legacy_points_balance = $3,
			lifetime_tokens_earned = $4,
			lifetime_points_earned = $5,
			updated_at = $6
		WHERE user_id = $1
	`, wallet.UserID, wallet.TokenBalance, wallet.LegacyPointsBalance,
		wallet.LifetimeTokensEarned, wallet.LifetimePointsEarned, wallet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update wallet for user %s: %w", wallet.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet for user %s not found", wallet.UserID)
	}
	return nil
}

// SetStatus freezes or unfreezes a wallet, creating it if needed
func (r *WalletRepository) SetStatus(ctx context.Context, userID string, status entities.WalletStatus) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO wallets (user_id, status) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
	`, userID, status)
	if err != nil {
		return fmt.Errorf("failed to set wallet status for user %s: %w", userID, err)
	}
	return nil
}

func scanWallet(row pgx.Row) (*entities.Wallet, error) {
	var w entities.Wallet
	err := row.Scan(
		&w.UserID,
		&w.TokenBalance,
		&w.LegacyPointsBalance,
		&w.LifetimeTokensEarned,
		&w.LifetimePointsEarned,
		&w.Status,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
