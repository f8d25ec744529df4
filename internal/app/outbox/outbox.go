package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"staysync/internal/domain/shared/events"
)

// EventRecord is the durable form of a domain event awaiting channel delivery.
type EventRecord struct {
	ID            string
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte
	OccurredAt    time.Time
	Headers       map[string]string
}

// Outbox is the only path by which calendar truth propagates outward.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:            idGen(),
		EventType:     ev.EventName(),
		AggregateType: ev.AggregateType(),
		AggregateID:   ev.AggregateID(),
		Payload:       payload,
		OccurredAt:    ev.OccurredAt(),
		Headers:       map[string]string{},
	}, nil
}

// RecordDomainEvents encodes and appends the aggregate's pending events.
// Appends happen inside the caller's transaction, so an event exists exactly
// when the mutation that produced it committed.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
