package channel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/IBM/sarama"

	"staysync/internal/app/commands"
	"staysync/internal/app/handlers/channelops"
	domainchannels "staysync/internal/domain/channels"
	"staysync/internal/domain/shared/daterange"
	"staysync/internal/infra/broker/kafka"
	"staysync/internal/infra/inbox"
)

const (
	EventCalendarUpdated     = "calendar.updated"
	EventReservationCreated  = "reservation.created"
	EventReservationModified = "reservation.modified"
	EventReservationCanceled = "reservation.cancelled"
)

// InboundTopic carries normalized channel events into the worker; deployments
// prefix it the same way as outbound topics.
const InboundTopic = "channel.inbound.v1"

// EventConsumer turns inbound kafka messages carrying normalized channel
// payloads into application commands, with inbox dedup in front of the bus.
type EventConsumer struct {
	Bus    commands.Bus
	Inbox  inbox.Store
	States StateRecorder
	Logger *slog.Logger
}

func (c *EventConsumer) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	channelName := headerValue(msg, "channel")
	if channelName == "" {
		c.logWarn("channel event without channel header dropped", msg, nil)
		return nil
	}
	key := c.dedupKey(msg)
	if c.Inbox != nil {
		seen, err := c.Inbox.Seen(ctx, key)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}

	var envelope domainchannels.WebhookEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		// malformed payloads are acked, not retried; they never get better
		c.logWarn("malformed channel event dropped", msg, err)
		return nil
	}
	if err := c.apply(ctx, channelName, key, envelope); err != nil {
		return err
	}
	if c.Inbox != nil {
		return c.Inbox.Mark(ctx, key)
	}
	return nil
}

func (c *EventConsumer) apply(ctx context.Context, channelName, dedupKey string, envelope domainchannels.WebhookEnvelope) error {
	switch envelope.EventType {
	case EventCalendarUpdated:
		var event domainchannels.CalendarEvent
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			c.logDecodeFailure(envelope.EventType, err)
			return nil
		}
		_, err := c.Bus.Dispatch(ctx, channelops.ApplyCalendarEventCommand{
			Channel:         channelName,
			Event:           event,
			IdempotencyKeyV: dedupKey,
		})
		if err := ignoreNotMapped(err); err != nil {
			return err
		}
		c.recordDay(ctx, channelName, event.RoomID, remoteDayFromEvent(event))
		return nil
	case EventReservationCreated, EventReservationModified, EventReservationCanceled:
		var res domainchannels.Reservation
		if err := json.Unmarshal(envelope.Data, &res); err != nil {
			c.logDecodeFailure(envelope.EventType, err)
			return nil
		}
		_, err := c.Bus.Dispatch(ctx, channelops.ImportReservationCommand{
			Channel:         channelName,
			Reservation:     res,
			IdempotencyKeyV: dedupKey,
		})
		if err := ignoreNotMapped(err); err != nil {
			return err
		}
		c.recordReservation(ctx, channelName, res, envelope.EventType == EventReservationCanceled)
		return nil
	default:
		if c.Logger != nil {
			c.Logger.Warn("unknown channel event type", "event_type", envelope.EventType)
		}
		return nil
	}
}

// recordDay stores an observation of the channel's declared state; failures
// only cost reconciliation freshness, never the event itself.
func (c *EventConsumer) recordDay(ctx context.Context, channelName, externalListingID string, day domainchannels.RemoteDay) {
	if c.States == nil {
		return
	}
	if err := c.States.Record(ctx, channelName, externalListingID, day); err != nil && c.Logger != nil {
		c.Logger.Warn("channel state observation not recorded", "channel", channelName, "listing", externalListingID, "err", err)
	}
}

func (c *EventConsumer) recordReservation(ctx context.Context, channelName string, res domainchannels.Reservation, canceled bool) {
	if c.States == nil {
		return
	}
	r, err := daterange.New(res.CheckIn, res.CheckOut)
	if err != nil {
		return
	}
	for _, d := range r.Days() {
		day := domainchannels.RemoteDay{Date: d, Available: canceled}
		if !canceled {
			day.Reservation = res.ReservationID
		}
		c.recordDay(ctx, channelName, res.RoomID, day)
	}
}

func remoteDayFromEvent(ev domainchannels.CalendarEvent) domainchannels.RemoteDay {
	return domainchannels.RemoteDay{
		Date:       ev.Date,
		Available:  ev.Available,
		PriceMinor: int64(math.Round(ev.Price * 100)),
		Currency:   ev.Currency,
		MinStay:    ev.MinStay,
		MaxStay:    ev.MaxStay,
		ClosedArr:  ev.ClosedOnArrival,
		ClosedDep:  ev.ClosedOnDeparture,
	}
}

// ignoreNotMapped acks events for listings this deployment does not map; the
// channel keeps sending the whole account feed.
func ignoreNotMapped(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domainchannels.ErrMappingNotFound) {
		return nil
	}
	return err
}

// dedupKey prefers the producer-assigned event id and falls back to a payload
// hash, so replays without ids still collapse.
func (c *EventConsumer) dedupKey(msg *sarama.ConsumerMessage) string {
	if id := headerValue(msg, "event_id"); id != "" {
		return id
	}
	sum := sha256.Sum256(msg.Value)
	return fmt.Sprintf("%s:%s", msg.Topic, hex.EncodeToString(sum[:]))
}

func headerValue(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *EventConsumer) logWarn(text string, msg *sarama.ConsumerMessage, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Warn(text, "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
}

func (c *EventConsumer) logDecodeFailure(eventType string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Warn("channel payload decode failed", "event_type", eventType, "err", err)
}

var _ kafka.MessageHandler = (*EventConsumer)(nil)
