package repository

import (
	"context"
	"fmt"

	"itcwallet/domain/entities"
)

// WebhookEventRepository implements interfaces.WebhookEventRepository
type WebhookEventRepository struct {
	q Queryable
}

// NewWebhookEventRepositoryScoped creates a webhook event repository on a transaction or pool
func NewWebhookEventRepositoryScoped(q Queryable) *WebhookEventRepository {
	return &WebhookEventRepository{q: q}
}

// Exists reports whether the event id has been recorded
func (r *WebhookEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM processor_webhook_events WHERE event_id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event %s: %w", eventID, err)
	}
	return exists, nil
}

// Record stores the event id. A second record for the same id returns ErrDuplicateWebhookEvent.
func (r *WebhookEventRepository) Record(ctx context.Context, record *entities.WebhookEventRecord) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO processor_webhook_events (event_id, event_type, cashout_request_id, outcome, received_at)
		VALUES ($1, $2, $3, $4, $5)
	`, record.EventID, record.EventType, record.CashoutRequestID, record.Outcome, record.ReceivedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", entities.ErrDuplicateWebhookEvent, record.EventID)
	}
	if err != nil {
		return fmt.Errorf("failed to record webhook event %s: %w", record.EventID, err)
	}
	return nil
}
