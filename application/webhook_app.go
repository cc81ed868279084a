package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/interfaces"
	"itcwallet/infrastructure/observability"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventDecoder turns a verified webhook payload into a processor event
type EventDecoder func(payload []byte) (*entities.ProcessorEvent, error)

// WebhookApp authenticates processor webhooks and applies them to cash-outs and destination accounts
type WebhookApp struct {
	uowFactory   interfaces.UnitOfWorkFactory
	verifier     interfaces.WebhookVerifier
	decode       EventDecoder
	cache        interfaces.WebhookEventCache
	metrics      *observability.MetricsProvider
	tokenUSDRate decimal.Decimal
	now          func() time.Time
}

// NewWebhookApp creates a new webhook application service. cache may be nil.
func NewWebhookApp(
	uowFactory interfaces.UnitOfWorkFactory,
	verifier interfaces.WebhookVerifier,
	decode EventDecoder,
	cache interfaces.WebhookEventCache,
	metrics *observability.MetricsProvider,
	tokenUSDRate decimal.Decimal,
) *WebhookApp {
	return &WebhookApp{
		uowFactory:   uowFactory,
		verifier:     verifier,
		decode:       decode,
		cache:        cache,
		metrics:      metrics,
		tokenUSDRate: tokenUSDRate,
		now:          time.Now,
	}
}

// HandleProcessorWebhook verifies the signature before touching anything, then applies the
// event exactly once. Events that were already processed report WebhookOutcomeDuplicate
// without an error so the processor stops redelivering them.
func (a *WebhookApp) HandleProcessorWebhook(ctx context.Context, payload []byte, signatureHeader string) (entities.WebhookOutcome, error) {
	if err := a.verifier.Verify(payload, signatureHeader, a.now()); err != nil {
		log.WithError(err).Warn("Rejected processor webhook with invalid signature")
		return "", err
	}

	event, err := a.decode(payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode webhook: %w", err)
	}

	fields := log.Fields{
		"eventId":   event.ID,
		"eventType": event.Type,
	}
	if event.CashoutRequestID != nil {
		fields["cashoutRequestId"] = *event.CashoutRequestID
	}

	if a.seenBefore(ctx, event.ID) {
		log.WithFields(fields).Info("Skipping webhook event already processed")
		a.metrics.RecordWebhookEvent(string(event.Type), string(entities.WebhookOutcomeDuplicate))
		return entities.WebhookOutcomeDuplicate, nil
	}

	var outcome entities.WebhookOutcome
	err = runInUnitOfWork(ctx, a.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		outcome, err = newDomainServices(uow, a.tokenUSDRate).reconciler.Apply(ctx, event)
		return err
	})
	if errors.Is(err, entities.ErrDuplicateWebhookEvent) {
		outcome, err = entities.WebhookOutcomeDuplicate, nil
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to apply webhook event")
		return "", err
	}

	a.markProcessed(ctx, event.ID)
	a.metrics.RecordWebhookEvent(string(event.Type), string(outcome))

	if outcome == entities.WebhookOutcomeDuplicate {
		log.WithFields(fields).Info("Webhook event already processed")
	}
	return outcome, nil
}

// seenBefore consults the cache. The durable event table stays authoritative, so cache
// errors only cost the fast path.
func (a *WebhookApp) seenBefore(ctx context.Context, eventID string) bool {
	if a.cache == nil {
		return false
	}
	processed, err := a.cache.IsProcessed(ctx, eventID)
	if err != nil {
		log.WithError(err).WithField("eventId", eventID).Warn("Webhook event cache lookup failed")
		return false
	}
	return processed
}

func (a *WebhookApp) markProcessed(ctx context.Context, eventID string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.MarkProcessed(ctx, eventID); err != nil {
		log.WithError(err).WithField("eventId", eventID).Warn("Failed to cache processed webhook event")
	}
}
