package infrastructure

import (
	"fmt"

	"itcwallet/domain/events"
)

// NATS subjects used by the wallet service
const (
	SubjectBalanceChanged     = "itc.wallet.balance_changed"
	SubjectCashoutStatus      = "itc.cashout.status_changed"
	SubjectDestinationUpdated = "itc.destination.updated"
	SubjectRewardsRequested   = "itc.rewards.requested"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeBalanceChange:
		return SubjectBalanceChanged
	case events.EventTypeCashoutStatusChange:
		return SubjectCashoutStatus
	case events.EventTypeDestinationUpdated:
		return SubjectDestinationUpdated
	default:
		return fmt.Sprintf("itc.unknown.%s", event.Type())
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		SubjectBalanceChanged,
		SubjectCashoutStatus,
		SubjectDestinationUpdated,
	}
}
