package infrastructure

import (
	"itcwallet/domain/events"

	log "github.com/sirupsen/logrus"
)

// NoopEventPublisher drops domain events. It stands in for NATS when NATS_SERVERS is
// empty and for admin commands.
type NoopEventPublisher struct{}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{}
}

// Publish logs the dropped event at debug level
func (n *NoopEventPublisher) Publish(event events.Event) error {
	log.WithField("eventType", event.Type()).Debug("Dropping domain event, no publisher configured")
	return nil
}
