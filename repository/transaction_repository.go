package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"itcwallet/domain/entities"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, seq, user_id, type, amount, balance_after, usd_value,
	reason, reference_id, metadata, created_at`

// TransactionRepository implements interfaces.TransactionRepository on the append-only ledger table
type TransactionRepository struct {
	q Queryable
}

// NewTransactionRepositoryScoped creates a transaction repository on a transaction or pool
func NewTransactionRepositoryScoped(q Queryable) *TransactionRepository {
	return &TransactionRepository{q: q}
}

// Create appends a transaction and fills in its sequence number
func (r *TransactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	metadata := tx.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	err = r.q.QueryRow(ctx, `
		INSERT INTO wallet_transactions (
			id, user_id, type, amount, balance_after, usd_value, reason, reference_id, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`, tx.ID, tx.UserID, tx.Type, tx.Amount, tx.BalanceAfter, tx.USDValue,
		tx.Reason, tx.ReferenceID, metadataJSON, tx.CreatedAt,
	).Scan(&tx.Seq)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s %v for user %s", entities.ErrDuplicateEntry, tx.Type, tx.ReferenceID, tx.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// FindByReference returns the transaction with the given reference, or nil
func (r *TransactionRepository) FindByReference(ctx context.Context, userID string, txType entities.TransactionType, referenceID string) (*entities.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE user_id = $1 AND type = $2 AND reference_id = $3
		ORDER BY seq
		LIMIT 1`
	tx, err := scanTransaction(r.q.QueryRow(ctx, query, userID, txType, referenceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction by reference: %w", err)
	}
	return tx, nil
}

// GetByUser returns a page of the user's transactions, newest first
func (r *TransactionRepository) GetByUser(ctx context.Context, userID string, limit, offset int) ([]*entities.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3`
	return r.queryTransactions(ctx, query, userID, limit, offset)
}

// GetAllByUser returns every transaction of the user in ledger order
func (r *TransactionRepository) GetAllByUser(ctx context.Context, userID string) ([]*entities.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY seq`
	return r.queryTransactions(ctx, query, userID)
}

// CountByUser returns the number of transactions of the user
func (r *TransactionRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *TransactionRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]*entities.Transaction, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*entities.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func scanTransaction(row pgx.Row) (*entities.Transaction, error) {
	var (
		tx           entities.Transaction
		metadataJSON []byte
	)
	err := row.Scan(
		&tx.ID,
		&tx.Seq,
		&tx.UserID,
		&tx.Type,
		&tx.Amount,
		&tx.BalanceAfter,
		&tx.USDValue,
		&tx.Reason,
		&tx.ReferenceID,
		&metadataJSON,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
		}
	}
	return &tx, nil
}
