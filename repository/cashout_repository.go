package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itcwallet/domain/entities"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const cashoutColumns = `id, user_id, destination_account_id, amount_tokens, gross_currency,
	platform_fee_currency, expedite_fee_currency, net_currency, payout_type, status,
	external_transfer_id, external_payout_id, failure_code, failure_message,
	requested_at, processed_at, arrived_at, updated_at`

// CashoutRepository implements interfaces.CashoutRepository
type CashoutRepository struct {
	q Queryable
}

// NewCashoutRepositoryScoped creates a cash-out repository on a transaction or pool
func NewCashoutRepositoryScoped(q Queryable) *CashoutRepository {
	return &CashoutRepository{q: q}
}

// Create inserts a new cash-out request
func (r *CashoutRepository) Create(ctx context.Context, c *entities.CashoutRequest) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO cashout_requests (`+cashoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, c.ID, c.UserID, c.DestinationAccountID, c.AmountTokens, c.GrossCurrency,
		c.PlatformFeeCurrency, c.ExpediteFeeCurrency, c.NetCurrency, c.PayoutType, c.Status,
		c.ExternalTransferID, c.ExternalPayoutID, c.FailureCode, c.FailureMessage,
		c.RequestedAt, c.ProcessedAt, c.ArrivedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert cash-out request %s: %w", c.ID, err)
	}
	return nil
}

// GetByID returns nil when the request does not exist
func (r *CashoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.CashoutRequest, error) {
	return r.get(ctx, `SELECT `+cashoutColumns+` FROM cashout_requests WHERE id = $1`, id)
}

// GetByIDForUpdate locks the request row until the transaction ends
func (r *CashoutRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.CashoutRequest, error) {
	return r.get(ctx, `SELECT `+cashoutColumns+` FROM cashout_requests WHERE id = $1 FOR UPDATE`, id)
}

// Update writes the mutable fields of a request
func (r *CashoutRepository) Update(ctx context.Context, c *entities.CashoutRequest) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE cashout_requests
		SET status = $2,
			external_transfer_id = $3,
			external_payout_id = $4,
			failure_code = $5,
			failure_message = $6,
			processed_at = $7,
			arrived_at = $8,
			updated_at = $9
		WHERE id = $1
	`, c.ID, c.Status, c.ExternalTransferID, c.ExternalPayoutID, c.FailureCode,
		c.FailureMessage, c.ProcessedAt, c.ArrivedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update cash-out request %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", entities.ErrCashoutNotFound, c.ID)
	}
	return nil
}

// GetStaleReserved returns reserved requests created before the cutoff, oldest first
func (r *CashoutRepository) GetStaleReserved(ctx context.Context, requestedBefore time.Time, limit int) ([]*entities.CashoutRequest, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+cashoutColumns+`
		FROM cashout_requests
		WHERE status = $1 AND requested_at < $2
		ORDER BY requested_at
		LIMIT $3
	`, entities.CashoutStatusReserved, requestedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale cash-out requests: %w", err)
	}
	defer rows.Close()

	var requests []*entities.CashoutRequest
	for rows.Next() {
		c, err := scanCashout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cash-out request: %w", err)
		}
		requests = append(requests, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash-out requests: %w", err)
	}
	return requests, nil
}

func (r *CashoutRepository) get(ctx context.Context, query string, id uuid.UUID) (*entities.CashoutRequest, error) {
	c, err := scanCashout(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cash-out request %s: %w", id, err)
	}
	return c, nil
}

func scanCashout(row pgx.Row) (*entities.CashoutRequest, error) {
	var c entities.CashoutRequest
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.DestinationAccountID,
		&c.AmountTokens,
		&c.GrossCurrency,
		&c.PlatformFeeCurrency,
		&c.ExpediteFeeCurrency,
		&c.NetCurrency,
		&c.PayoutType,
		&c.Status,
		&c.ExternalTransferID,
		&c.ExternalPayoutID,
		&c.FailureCode,
		&c.FailureMessage,
		&c.RequestedAt,
		&c.ProcessedAt,
		&c.ArrivedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
