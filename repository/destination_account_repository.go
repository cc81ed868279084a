package repository

import (
	"context"
	"errors"
	"fmt"

	"itcwallet/domain/entities"

	"github.com/jackc/pgx/v5"
)

const destinationColumns = `user_id, external_account_id, onboarding_complete, payouts_enabled,
	instant_payouts_eligible, requirements_due, last_synced_at, created_at`

// DestinationAccountRepository implements interfaces.DestinationAccountRepository
type DestinationAccountRepository struct {
	q Queryable
}

// NewDestinationAccountRepositoryScoped creates a destination account repository on a transaction or pool
func NewDestinationAccountRepositoryScoped(q Queryable) *DestinationAccountRepository {
	return &DestinationAccountRepository{q: q}
}

// GetByUserID returns nil when the user has no destination account
func (r *DestinationAccountRepository) GetByUserID(ctx context.Context, userID string) (*entities.DestinationAccount, error) {
	return r.get(ctx, `SELECT `+destinationColumns+` FROM destination_accounts WHERE user_id = $1`, userID)
}

// GetByExternalID returns nil when no user has the processor account
func (r *DestinationAccountRepository) GetByExternalID(ctx context.Context, externalAccountID string) (*entities.DestinationAccount, error) {
	return r.get(ctx, `SELECT `+destinationColumns+` FROM destination_accounts WHERE external_account_id = $1`, externalAccountID)
}

// Upsert stores the account keyed by user
func (r *DestinationAccountRepository) Upsert(ctx context.Context, a *entities.DestinationAccount) error {
	requirements := a.RequirementsDue
	if requirements == nil {
		requirements = []string{}
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO destination_accounts (`+destinationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			external_account_id = EXCLUDED.external_account_id,
			onboarding_complete = EXCLUDED.onboarding_complete,
			payouts_enabled = EXCLUDED.payouts_enabled,
			instant_payouts_eligible = EXCLUDED.instant_payouts_eligible,
			requirements_due = EXCLUDED.requirements_due,
			last_synced_at = EXCLUDED.last_synced_at
	`, a.UserID, a.ExternalAccountID, a.OnboardingComplete, a.PayoutsEnabled,
		a.InstantPayoutsEligible, requirements, a.LastSyncedAt, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert destination account for user %s: %w", a.UserID, err)
	}
	return nil
}

func (r *DestinationAccountRepository) get(ctx context.Context, query string, arg string) (*entities.DestinationAccount, error) {
	var a entities.DestinationAccount
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&a.UserID,
		&a.ExternalAccountID,
		&a.OnboardingComplete,
		&a.PayoutsEnabled,
		&a.InstantPayoutsEligible,
		&a.RequirementsDue,
		&a.LastSyncedAt,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get destination account: %w", err)
	}
	return &a, nil
}
