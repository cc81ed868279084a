package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

const defaultPayoutFailureCode = "payout_failed"

// webhookReconciler applies processor events after checking the current state, so
// redelivered and out-of-order events never move a request backwards or refund twice
type webhookReconciler struct {
	cashoutRepo    interfaces.CashoutRepository
	webhookRepo    interfaces.WebhookEventRepository
	ledger         interfaces.LedgerService
	destinations   interfaces.DestinationAccountService
	eventPublisher interfaces.EventPublisher
	now            func() time.Time
}

// NewWebhookReconciler creates a reconciler bound to the repositories of one unit of work
func NewWebhookReconciler(
	cashoutRepo interfaces.CashoutRepository,
	webhookRepo interfaces.WebhookEventRepository,
	ledger interfaces.LedgerService,
	destinations interfaces.DestinationAccountService,
	eventPublisher interfaces.EventPublisher,
) interfaces.WebhookReconciler {
	return &webhookReconciler{
		cashoutRepo:    cashoutRepo,
		webhookRepo:    webhookRepo,
		ledger:         ledger,
		destinations:   destinations,
		eventPublisher: eventPublisher,
		now:            time.Now,
	}
}

// Apply processes one event and records its id. A recorded event id returns
// WebhookOutcomeDuplicate; if the id is recorded concurrently, ErrDuplicateWebhookEvent
// is returned and the caller must roll back.
func (r *webhookReconciler) Apply(ctx context.Context, event *entities.ProcessorEvent) (entities.WebhookOutcome, error) {
	if event == nil || event.ID == "" {
		return "", fmt.Errorf("%w: webhook event id is required", entities.ErrInvalidEntry)
	}

	seen, err := r.webhookRepo.Exists(ctx, event.ID)
	if err != nil {
		return "", fmt.Errorf("failed to check webhook event: %w", err)
	}
	if seen {
		return entities.WebhookOutcomeDuplicate, nil
	}

	var outcome entities.WebhookOutcome
	switch event.Type {
	case entities.ProcessorEventPayoutPaid:
		outcome, err = r.applyPayoutPaid(ctx, event)
	case entities.ProcessorEventPayoutFailed:
		outcome, err = r.applyPayoutFailed(ctx, event)
	case entities.ProcessorEventAccountUpdated:
		outcome, err = r.applyAccountUpdated(ctx, event)
	default:
		outcome = entities.WebhookOutcomeIgnored
	}
	if err != nil {
		return "", err
	}

	err = r.webhookRepo.Record(ctx, &entities.WebhookEventRecord{
		EventID:          event.ID,
		EventType:        event.Type,
		CashoutRequestID: event.CashoutRequestID,
		Outcome:          outcome,
		ReceivedAt:       r.now(),
	})
	if err != nil {
		if errors.Is(err, entities.ErrDuplicateWebhookEvent) {
			return entities.WebhookOutcomeDuplicate, err
		}
		return "", fmt.Errorf("failed to record webhook event: %w", err)
	}

	log.WithFields(log.Fields{
		"eventId":   event.ID,
		"eventType": event.Type,
		"outcome":   outcome,
	}).Info("Processed webhook event")

	return outcome, nil
}

func (r *webhookReconciler) applyPayoutPaid(ctx context.Context, event *entities.ProcessorEvent) (entities.WebhookOutcome, error) {
	request, err := r.lockRequest(ctx, event)
	if err != nil || request == nil {
		return entities.WebhookOutcomeUnmatched, err
	}

	switch request.Status {
	case entities.CashoutStatusReserved, entities.CashoutStatusTransferring:
	case entities.CashoutStatusPaid:
		return entities.WebhookOutcomeNoop, nil
	default:
		log.WithFields(log.Fields{
			"eventId":          event.ID,
			"cashoutRequestId": request.ID,
			"status":           request.Status,
		}).Warn("Ignoring payout.paid for cash-out that is not awaiting the processor")
		return entities.WebhookOutcomeNoop, nil
	}

	now := r.now()
	arrivedAt := now
	if event.ArrivalDate != nil {
		arrivedAt = *event.ArrivalDate
	}

	previous := request.Status
	if err := request.MarkPaid(arrivedAt, now); err != nil {
		return "", err
	}
	if request.ExternalPayoutID == nil && event.PayoutID != "" {
		request.ExternalPayoutID = entities.Ref(event.PayoutID)
	}
	if err := r.cashoutRepo.Update(ctx, request); err != nil {
		return "", fmt.Errorf("failed to update cash-out request: %w", err)
	}

	publishCashoutTransition(r.eventPublisher, request, previous)
	return entities.WebhookOutcomeApplied, nil
}

func (r *webhookReconciler) applyPayoutFailed(ctx context.Context, event *entities.ProcessorEvent) (entities.WebhookOutcome, error) {
	request, err := r.lockRequest(ctx, event)
	if err != nil || request == nil {
		return entities.WebhookOutcomeUnmatched, err
	}

	code := event.FailureCode
	if code == "" {
		code = defaultPayoutFailureCode
	}

	switch request.Status {
	case entities.CashoutStatusReserved, entities.CashoutStatusTransferring:
		now := r.now()
		previous := request.Status
		if err := request.MarkFailed(code, event.FailureMessage, now); err != nil {
			return "", err
		}
		if event.PayoutID != "" && request.ExternalPayoutID == nil {
			request.ExternalPayoutID = entities.Ref(event.PayoutID)
		}
		publishCashoutTransition(r.eventPublisher, request, previous)
		return r.refundFailed(ctx, request, true)
	case entities.CashoutStatusFailed:
		return r.refundFailed(ctx, request, false)
	case entities.CashoutStatusRefunded:
		return entities.WebhookOutcomeNoop, nil
	default:
		log.WithFields(log.Fields{
			"eventId":          event.ID,
			"cashoutRequestId": request.ID,
			"status":           request.Status,
		}).Warn("Ignoring payout.failed for cash-out that is not awaiting the processor")
		return entities.WebhookOutcomeNoop, nil
	}
}

// refundFailed credits a failed request back and marks it refunded. A request that was
// already failed before this event and whose refund is in the ledger is left as it is.
func (r *webhookReconciler) refundFailed(ctx context.Context, request *entities.CashoutRequest, failedByEvent bool) (entities.WebhookOutcome, error) {
	previous := request.Status

	result, err := r.ledger.ApplyEntry(ctx, refundEntry(request))
	if err != nil {
		return "", fmt.Errorf("failed to refund cash-out %s: %w", request.ID, err)
	}
	if result.Duplicate && !failedByEvent {
		// the synchronous path already compensated
		return entities.WebhookOutcomeNoop, nil
	}

	if err := request.MarkRefunded(r.now()); err != nil {
		return "", err
	}
	if err := r.cashoutRepo.Update(ctx, request); err != nil {
		return "", fmt.Errorf("failed to update cash-out request: %w", err)
	}

	publishCashoutTransition(r.eventPublisher, request, previous)
	return entities.WebhookOutcomeApplied, nil
}

func (r *webhookReconciler) applyAccountUpdated(ctx context.Context, event *entities.ProcessorEvent) (entities.WebhookOutcome, error) {
	if event.Account == nil {
		return entities.WebhookOutcomeIgnored, nil
	}
	account, changed, err := r.destinations.ApplyProcessorAccount(ctx, "", event.Account)
	if err != nil {
		return "", err
	}
	if account == nil {
		return entities.WebhookOutcomeUnmatched, nil
	}
	if !changed {
		return entities.WebhookOutcomeNoop, nil
	}
	return entities.WebhookOutcomeApplied, nil
}

func (r *webhookReconciler) lockRequest(ctx context.Context, event *entities.ProcessorEvent) (*entities.CashoutRequest, error) {
	if event.CashoutRequestID == nil {
		log.WithField("eventId", event.ID).Warn("Payout event has no cash-out request id")
		return nil, nil
	}
	request, err := r.cashoutRepo.GetByIDForUpdate(ctx, *event.CashoutRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cash-out request: %w", err)
	}
	if request == nil {
		log.WithFields(log.Fields{
			"eventId":          event.ID,
			"cashoutRequestId": *event.CashoutRequestID,
		}).Warn("Payout event references unknown cash-out request")
	}
	return request, nil
}
