package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	appoutbox "staysync/internal/app/outbox"
	"staysync/internal/infra/obs"
)

// Producer is the outbound transport the dispatcher drains into.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// PendingEvent is a claimed outbox event together with its delivery history.
type PendingEvent struct {
	appoutbox.EventRecord
	Attempts int
}

// Store is the durable outbox the dispatcher drains. ClaimBatch must never
// return an event whose aggregate already has one in flight, and within one
// aggregate events surface in creation order.
type Store interface {
	ClaimBatch(ctx context.Context, workerID string, limit int) ([]PendingEvent, error)
	MarkSent(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id string, next time.Time, errMsg string) error
	MarkPoisoned(ctx context.Context, id string, errMsg string) error
}

var ErrDispatcherNotConfigured = errors.New("outbox: dispatcher missing dependencies")

// Dispatcher drains the outbox into the channel transport with at-least-once
// delivery. Failed deliveries re-queue with backoff until MaxAttempts, then
// the event is poisoned and waits for an operator bulk retry.
type Dispatcher struct {
	Store       Store
	Producer    Producer
	Logger      *slog.Logger
	Metrics     *obs.Metrics
	Interval    time.Duration
	BatchSize   int
	Workers     int64
	MaxAttempts int
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
}

func (d *Dispatcher) Run(ctx context.Context) error {
	if d.Store == nil || d.Producer == nil {
		return ErrDispatcherNotConfigured
	}
	sem := semaphore.NewWeighted(d.workers())
	ticker := time.NewTicker(d.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.processOnce(ctx, sem); err != nil {
				return err
			}
		}
	}
}

func (d *Dispatcher) processOnce(ctx context.Context, sem *semaphore.Weighted) error {
	batch, err := d.Store.ClaimBatch(ctx, d.workerID(), d.batchSize())
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	for _, ev := range batch {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func(ev PendingEvent) {
			defer sem.Release(1)
			defer wg.Done()
			d.deliver(ctx, ev)
		}(ev)
	}
	wg.Wait()
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, ev PendingEvent) {
	payload, headers, err := d.envelope(ev.EventRecord)
	if err == nil {
		err = d.Producer.Publish(ctx, d.topicFor(ev.AggregateType), ev.AggregateID, payload, headers)
	}
	if err == nil {
		if markErr := d.Store.MarkSent(ctx, ev.ID); markErr != nil {
			d.logError("outbox ack failed", ev, markErr)
			return
		}
		d.Metrics.ObserveOutbox("sent")
		return
	}

	attempts := ev.Attempts + 1
	if d.MaxAttempts > 0 && attempts >= d.MaxAttempts {
		if markErr := d.Store.MarkPoisoned(ctx, ev.ID, err.Error()); markErr != nil {
			d.logError("outbox poison failed", ev, markErr)
			return
		}
		d.Metrics.ObserveOutbox("poisoned")
		d.logError("outbox event poisoned", ev, err)
		return
	}
	if markErr := d.Store.MarkRetry(ctx, ev.ID, time.Now().Add(d.nextBackoff(ev.Attempts)), err.Error()); markErr != nil {
		d.logError("outbox retry failed", ev, markErr)
		return
	}
	d.Metrics.ObserveOutbox("retried")
}

// envelope wraps the stored payload in a CloudEvents JSON envelope.
func (d *Dispatcher) envelope(rec appoutbox.EventRecord) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              rec.ID,
		"type":            rec.EventType + ".v1",
		"source":          d.source(),
		"time":            rec.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func (d *Dispatcher) topicFor(aggregateType string) string {
	topic := aggregateType + ".events.v1"
	if d.TopicPrefix != "" {
		topic = d.TopicPrefix + topic
	}
	return topic
}

func (d *Dispatcher) nextBackoff(attempts int) time.Duration {
	if attempts < len(d.Backoff) {
		return d.Backoff[attempts]
	}
	if len(d.Backoff) > 0 {
		return d.Backoff[len(d.Backoff)-1]
	}
	return 5 * time.Second
}

func (d *Dispatcher) workerID() string {
	if d.ID != "" {
		return d.ID
	}
	return uuid.NewString()
}

func (d *Dispatcher) interval() time.Duration {
	if d.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return d.Interval
}

func (d *Dispatcher) batchSize() int {
	if d.BatchSize <= 0 {
		return 64
	}
	return d.BatchSize
}

func (d *Dispatcher) workers() int64 {
	if d.Workers <= 0 {
		return 4
	}
	return d.Workers
}

func (d *Dispatcher) source() string {
	if d.Source != "" {
		return d.Source
	}
	return "app://staysync"
}

func (d *Dispatcher) logError(msg string, ev PendingEvent, err error) {
	if d.Logger == nil {
		return
	}
	d.Logger.Error(msg, "event_id", ev.ID, "event_type", ev.EventType, "aggregate_id", ev.AggregateID, "attempts", ev.Attempts, "err", err)
}
