package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"staysync/internal/app/dto"
	appoutbox "staysync/internal/app/outbox"
	infraoutbox "staysync/internal/infra/outbox"
	"staysync/internal/infra/storage/memory"
)

type publishedMessage struct {
	Topic   string
	Key     string
	Payload []byte
	Headers map[string]string
}

type fakeProducer struct {
	mu       sync.Mutex
	err      error
	messages []publishedMessage
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, publishedMessage{Topic: topic, Key: key, Payload: payload, Headers: headers})
	return nil
}

func (p *fakeProducer) published() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMessage(nil), p.messages...)
}

func runDispatcher(t *testing.T, d *infraoutbox.Dispatcher, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("dispatcher did not reach expected state in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func TestDispatcherDeliversCloudEvent(t *testing.T) {
	store := memory.NewOutboxStore()
	producer := &fakeProducer{}
	ctx := context.Background()

	rec := appoutbox.EventRecord{
		ID:            "e1",
		EventType:     "calendar.dates_blocked",
		AggregateType: "calendar",
		AggregateID:   "prop-1",
		Payload:       []byte(`{"property_id":"prop-1"}`),
		OccurredAt:    time.Now().UTC(),
	}
	if err := store.Add(ctx, rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	d := &infraoutbox.Dispatcher{
		Store:       store,
		Producer:    producer,
		Interval:    5 * time.Millisecond,
		MaxAttempts: 3,
		ID:          "test-worker",
	}
	runDispatcher(t, d, func() bool {
		stats, _ := store.Stats(ctx)
		return stats.Sent == 1
	})

	msgs := producer.published()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.Topic != "calendar.events.v1" {
		t.Errorf("topic = %q, want calendar.events.v1", msg.Topic)
	}
	if msg.Key != "prop-1" {
		t.Errorf("key = %q, want prop-1", msg.Key)
	}
	if ct := msg.Headers["content-type"]; ct != "application/cloudevents+json" {
		t.Errorf("content-type = %q", ct)
	}
	var envelope map[string]any
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if envelope["specversion"] != "1.0" {
		t.Errorf("specversion = %v", envelope["specversion"])
	}
	if envelope["type"] != "calendar.dates_blocked.v1" {
		t.Errorf("type = %v", envelope["type"])
	}
	data, ok := envelope["data"].(map[string]any)
	if !ok || data["property_id"] != "prop-1" {
		t.Errorf("data = %v", envelope["data"])
	}
}

func TestDispatcherPoisonsAfterMaxAttempts(t *testing.T) {
	store := memory.NewOutboxStore()
	producer := &fakeProducer{err: errors.New("broker unreachable")}
	ctx := context.Background()

	if err := store.Add(ctx, appoutbox.EventRecord{
		ID:            "e1",
		EventType:     "calendar.dates_blocked",
		AggregateType: "calendar",
		AggregateID:   "prop-1",
		Payload:       []byte(`{}`),
		OccurredAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	d := &infraoutbox.Dispatcher{
		Store:       store,
		Producer:    producer,
		Interval:    5 * time.Millisecond,
		MaxAttempts: 2,
		Backoff:     []time.Duration{0},
		ID:          "test-worker",
	}
	runDispatcher(t, d, func() bool {
		stats, _ := store.Stats(ctx)
		return stats.Failed == 1
	})

	entries, err := store.List(ctx, "FAILED", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("failed entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", entry.Attempts)
	}
	if entry.LastError == "" {
		t.Error("last error not recorded")
	}
	if len(producer.published()) != 0 {
		t.Error("poisoned event must not count as published")
	}

	// the poison stays parked until an operator requeues it
	var stats dto.OutboxStats
	stats, _ = store.Stats(ctx)
	if stats.Pending != 0 || stats.InFlight != 0 {
		t.Errorf("stats = %+v, want event parked as FAILED", stats)
	}
}
