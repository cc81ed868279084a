package infrastructure

import (
	"context"

	"itcwallet/domain/events"
	"itcwallet/domain/interfaces"
	"itcwallet/infrastructure/observability"
)

// NewInstrumentedTransactionalPublisher creates a transactional publisher that also
// counts committed ledger entries and cash-out transitions
func NewInstrumentedTransactionalPublisher(realPublisher interfaces.EventPublisher, metrics *observability.MetricsProvider) interfaces.TransactionalEventPublisher {
	publisher := NewNATSTransactionalPublisher(realPublisher).(*NATSTransactionalPublisher)

	publisher.RegisterLocalHandler(events.EventTypeBalanceChange, func(_ context.Context, event events.Event) error {
		if change, ok := event.(events.BalanceChangeEvent); ok {
			metrics.RecordLedgerEntry(string(change.TransactionType))
		}
		return nil
	})
	publisher.RegisterLocalHandler(events.EventTypeCashoutStatusChange, func(_ context.Context, event events.Event) error {
		if change, ok := event.(events.CashoutStatusChangeEvent); ok {
			metrics.RecordCashoutTransition(string(change.NewStatus))
		}
		return nil
	})

	return publisher
}
