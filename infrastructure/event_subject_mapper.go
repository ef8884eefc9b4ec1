package infrastructure

import (
	"fmt"

	"taixiu/events"
)

var eventSubjects = map[events.EventType]string{
	events.EventTypeBalanceChange: "taixiu.users.balance_changed",
	events.EventTypeUserCreated:   "taixiu.users.created",
	events.EventTypeBetPlaced:     "taixiu.bets.placed",
	events.EventTypeRoundOpened:   "taixiu.rounds.opened",
	events.EventTypeRoundLocked:   "taixiu.rounds.locked",
	events.EventTypeRoundFinished: "taixiu.rounds.finished",
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := eventSubjects[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("taixiu.unknown.%s", event.Type())
}

// EventTypes returns every event type that is exported
func (m *EventSubjectMapper) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeBalanceChange,
		events.EventTypeUserCreated,
		events.EventTypeBetPlaced,
		events.EventTypeRoundOpened,
		events.EventTypeRoundLocked,
		events.EventTypeRoundFinished,
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	types := m.EventTypes()
	subjects := make([]string, 0, len(types))
	for _, eventType := range types {
		subjects = append(subjects, eventSubjects[eventType])
	}
	return subjects
}
