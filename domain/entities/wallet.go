package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletStatus represents whether a wallet accepts ledger entries
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "active"
	WalletStatusFrozen WalletStatus = "frozen"
)

// Wallet is the per-user balance record. TokenBalance is a projection of the
// user's transactions and is only ever written together with a new transaction.
type Wallet struct {
	UserID               string          `db:"user_id"`
	TokenBalance         decimal.Decimal `db:"token_balance"`
	LegacyPointsBalance  int64           `db:"legacy_points_balance"`
	LifetimeTokensEarned decimal.Decimal `db:"lifetime_tokens_earned"`
	LifetimePointsEarned int64           `db:"lifetime_points_earned"`
	Status               WalletStatus    `db:"status"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

// NewWallet returns an empty active wallet for the user
func NewWallet(userID string) *Wallet {
	return &Wallet{
		UserID:               userID,
		TokenBalance:         decimal.Zero,
		LifetimeTokensEarned: decimal.Zero,
		Status:               WalletStatusActive,
	}
}

// IsFrozen returns true if the wallet only accepts refunds and admin adjustments
func (w *Wallet) IsFrozen() bool {
	return w.Status == WalletStatusFrozen
}

// Snapshot returns the read model exposed to callers
func (w *Wallet) Snapshot() *WalletSnapshot {
	return &WalletSnapshot{
		UserID:               w.UserID,
		TokenBalance:         w.TokenBalance,
		LegacyPointsBalance:  w.LegacyPointsBalance,
		LifetimeTokensEarned: w.LifetimeTokensEarned,
		LifetimePointsEarned: w.LifetimePointsEarned,
		Status:               w.Status,
		UpdatedAt:            w.UpdatedAt,
	}
}

// WalletSnapshot is the balance view returned by getWalletSnapshot
type WalletSnapshot struct {
	UserID               string          `json:"userId"`
	TokenBalance         decimal.Decimal `json:"tokenBalance"`
	LegacyPointsBalance  int64           `json:"legacyPointsBalance"`
	LifetimeTokensEarned decimal.Decimal `json:"lifetimeTokensEarned"`
	LifetimePointsEarned int64           `json:"lifetimePointsEarned"`
	Status               WalletStatus    `json:"status"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}
