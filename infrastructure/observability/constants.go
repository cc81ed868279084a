package observability

// Metric name prefixes
const (
	MetricPrefix = "itc_wallet"
)

// Metric names
const (
	// Ledger metrics
	LedgerEntriesTotal = MetricPrefix + ".ledger.entries_total"

	// Cash-out metrics
	CashoutTransitionsTotal = MetricPrefix + ".cashout.transitions_total"

	// Webhook metrics
	WebhookEventsTotal = MetricPrefix + ".webhook.events_total"

	// NATS metrics
	NATSMessagesReceivedTotal  = MetricPrefix + ".nats.messages_received_total"
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Payout processor metrics
	ProcessorCallDuration = MetricPrefix + ".processor.call_duration"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelStatus    = "status"
	LabelOutcome   = "outcome"
	LabelMethod    = "method"
	LabelResult    = "result"
)
