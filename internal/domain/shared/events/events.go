package events

import "time"

// DomainEvent is raised by an aggregate after a successful state change and
// carried to external channels through the outbox.
type DomainEvent interface {
	EventName() string
	AggregateType() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder collects pending events inside an aggregate until the
// application layer hands them to the outbox and clears them.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(r.pending))
	copy(out, r.pending)
	return out
}

func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}
