package channel_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"staysync/internal/app/commands"
	"staysync/internal/app/handlers/channelops"
	domainchannels "staysync/internal/domain/channels"
	"staysync/internal/infra/channel"
	"staysync/internal/infra/inbox"
)

type fakeBus struct {
	mu         sync.Mutex
	dispatched []commands.Command
	err        error
}

func (b *fakeBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatched = append(b.dispatched, cmd)
	return nil, b.err
}

func (b *fakeBus) commands() []commands.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]commands.Command(nil), b.dispatched...)
}

type recordedDay struct {
	Channel string
	Listing string
	Day     domainchannels.RemoteDay
}

type fakeRecorder struct {
	mu   sync.Mutex
	days []recordedDay
}

func (r *fakeRecorder) Record(ctx context.Context, channelName, externalListingID string, day domainchannels.RemoteDay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.days = append(r.days, recordedDay{Channel: channelName, Listing: externalListingID, Day: day})
	return nil
}

func (r *fakeRecorder) recorded() []recordedDay {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedDay(nil), r.days...)
}

func inboundMessage(t *testing.T, channelName, eventID, eventType string, data any) *sarama.ConsumerMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	payload, err := json.Marshal(domainchannels.WebhookEnvelope{
		EventType: eventType,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	msg := &sarama.ConsumerMessage{
		Topic: "channel.inbound.v1",
		Value: payload,
		Headers: []*sarama.RecordHeader{
			{Key: []byte("channel"), Value: []byte(channelName)},
		},
	}
	if eventID != "" {
		msg.Headers = append(msg.Headers, &sarama.RecordHeader{Key: []byte("event_id"), Value: []byte(eventID)})
	}
	return msg
}

func TestConsumerDispatchesCalendarEvent(t *testing.T) {
	bus := &fakeBus{}
	recorder := &fakeRecorder{}
	store := inbox.NewMemoryStore()
	consumer := &channel.EventConsumer{Bus: bus, Inbox: store, States: recorder}

	date := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	msg := inboundMessage(t, "airbnb", "evt-1", channel.EventCalendarUpdated, domainchannels.CalendarEvent{
		HotelID:   "H1",
		RoomID:    "L1",
		Date:      date,
		Available: false,
		Price:     129.50,
		Currency:  "EUR",
	})
	if err := consumer.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := bus.commands()
	if len(got) != 1 {
		t.Fatalf("dispatched = %d commands, want 1", len(got))
	}
	cmd, ok := got[0].(channelops.ApplyCalendarEventCommand)
	if !ok {
		t.Fatalf("dispatched %T, want ApplyCalendarEventCommand", got[0])
	}
	if cmd.Channel != "airbnb" || cmd.IdempotencyKeyV != "evt-1" {
		t.Fatalf("unexpected command %+v", cmd)
	}

	days := recorder.recorded()
	if len(days) != 1 {
		t.Fatalf("recorded = %d days, want 1", len(days))
	}
	if days[0].Listing != "L1" || days[0].Day.PriceMinor != 12950 || days[0].Day.Available {
		t.Fatalf("unexpected observation %+v", days[0])
	}

	seen, err := store.Seen(context.Background(), "evt-1")
	if err != nil || !seen {
		t.Fatalf("Seen = %v, %v; want true", seen, err)
	}
}

func TestConsumerSkipsDuplicateDelivery(t *testing.T) {
	bus := &fakeBus{}
	store := inbox.NewMemoryStore()
	if err := store.Mark(context.Background(), "evt-1"); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	consumer := &channel.EventConsumer{Bus: bus, Inbox: store}

	msg := inboundMessage(t, "airbnb", "evt-1", channel.EventCalendarUpdated, domainchannels.CalendarEvent{RoomID: "L1"})
	if err := consumer.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(bus.commands()) != 0 {
		t.Fatalf("duplicate delivery reached the bus")
	}
}

func TestConsumerAcksUnmappedListing(t *testing.T) {
	bus := &fakeBus{err: domainchannels.ErrMappingNotFound}
	store := inbox.NewMemoryStore()
	consumer := &channel.EventConsumer{Bus: bus, Inbox: store}

	msg := inboundMessage(t, "booking", "evt-2", channel.EventCalendarUpdated, domainchannels.CalendarEvent{RoomID: "L9"})
	if err := consumer.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	seen, err := store.Seen(context.Background(), "evt-2")
	if err != nil || !seen {
		t.Fatalf("unmapped delivery not acked: seen=%v err=%v", seen, err)
	}
}

func TestConsumerRetriesOnBusFailure(t *testing.T) {
	busErr := errors.New("storage unavailable")
	bus := &fakeBus{err: busErr}
	store := inbox.NewMemoryStore()
	consumer := &channel.EventConsumer{Bus: bus, Inbox: store}

	msg := inboundMessage(t, "airbnb", "evt-3", channel.EventCalendarUpdated, domainchannels.CalendarEvent{RoomID: "L1"})
	if err := consumer.Handle(context.Background(), msg); !errors.Is(err, busErr) {
		t.Fatalf("Handle = %v, want %v", err, busErr)
	}
	seen, err := store.Seen(context.Background(), "evt-3")
	if err != nil || seen {
		t.Fatalf("failed delivery must stay unmarked: seen=%v err=%v", seen, err)
	}
}

func TestConsumerAcksMalformedPayload(t *testing.T) {
	bus := &fakeBus{}
	consumer := &channel.EventConsumer{Bus: bus, Inbox: inbox.NewMemoryStore()}

	msg := &sarama.ConsumerMessage{
		Topic: "channel.inbound.v1",
		Value: []byte("{not json"),
		Headers: []*sarama.RecordHeader{
			{Key: []byte("channel"), Value: []byte("airbnb")},
		},
	}
	if err := consumer.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(bus.commands()) != 0 {
		t.Fatalf("malformed payload reached the bus")
	}
}

func TestConsumerRecordsCanceledReservationAsOpenDays(t *testing.T) {
	bus := &fakeBus{}
	recorder := &fakeRecorder{}
	consumer := &channel.EventConsumer{Bus: bus, Inbox: inbox.NewMemoryStore(), States: recorder}

	checkIn := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	msg := inboundMessage(t, "airbnb", "evt-4", channel.EventReservationCanceled, domainchannels.Reservation{
		ReservationID: "res-1",
		RoomID:        "L1",
		CheckIn:       checkIn,
		CheckOut:      checkIn.AddDate(0, 0, 2),
	})
	if err := consumer.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	days := recorder.recorded()
	if len(days) != 2 {
		t.Fatalf("recorded = %d days, want 2", len(days))
	}
	for _, d := range days {
		if !d.Day.Available || d.Day.Reservation != "" {
			t.Fatalf("canceled stay day should be open, got %+v", d.Day)
		}
	}
}
