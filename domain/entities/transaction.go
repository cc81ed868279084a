package entities

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is an immutable ledger row. Seq orders a user's rows and is assigned by the store.
type Transaction struct {
	ID           uuid.UUID           `db:"id" json:"id"`
	Seq          int64               `db:"seq" json:"-"`
	UserID       string              `db:"user_id" json:"userId"`
	Type         TransactionType     `db:"type" json:"type"`
	Amount       decimal.Decimal     `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal     `db:"balance_after" json:"balanceAfter"`
	USDValue     decimal.NullDecimal `db:"usd_value" json:"usdValue"`
	Reason       string              `db:"reason" json:"reason"`
	ReferenceID  *string             `db:"reference_id" json:"referenceId,omitempty"`
	Metadata     map[string]any      `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"createdAt"`
}

// IsCredit returns true if the transaction increased the balance
func (t *Transaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// BalanceBefore returns the balance the transaction was applied to
func (t *Transaction) BalanceBefore() decimal.Decimal {
	return t.BalanceAfter.Sub(t.Amount)
}

// Validate checks the transaction against the balance that preceded it
func (t *Transaction) Validate(previousBalance decimal.Decimal) error {
	if t.Amount.IsZero() {
		return errors.New("transaction amount cannot be zero")
	}
	if !t.BalanceAfter.Equal(previousBalance.Add(t.Amount)) {
		return fmt.Errorf("balance mismatch: %s + %s != %s",
			previousBalance.String(), t.Amount.String(), t.BalanceAfter.String())
	}
	if t.BalanceAfter.IsNegative() {
		return fmt.Errorf("balance after transaction %s is negative", t.ID)
	}
	return nil
}

// ReplayBalance rebuilds a balance from zero by applying transactions in ledger order
// (oldest first), validating every balanceAfter along the way.
func ReplayBalance(transactions []*Transaction) (decimal.Decimal, error) {
	balance := decimal.Zero
	for i, tx := range transactions {
		if err := tx.Validate(balance); err != nil {
			return decimal.Zero, fmt.Errorf("transaction %d (%s): %w", i, tx.ID, err)
		}
		balance = tx.BalanceAfter
	}
	return balance, nil
}
