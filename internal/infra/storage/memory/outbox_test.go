package memory

import (
	"context"
	"testing"
	"time"

	appoutbox "staysync/internal/app/outbox"
)

func record(id, aggregateID string) appoutbox.EventRecord {
	return appoutbox.EventRecord{
		ID:            id,
		EventType:     "calendar.dates_blocked",
		AggregateType: "calendar",
		AggregateID:   aggregateID,
		Payload:       []byte(`{}`),
		OccurredAt:    time.Now().UTC(),
	}
}

func TestClaimBatchTakesOnePerAggregate(t *testing.T) {
	ctx := context.Background()
	store := NewOutboxStore()
	for _, rec := range []appoutbox.EventRecord{
		record("e1", "prop-1"),
		record("e2", "prop-1"),
		record("e3", "prop-2"),
	} {
		if err := store.Add(ctx, rec); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	batch, err := store.ClaimBatch(ctx, "w1", 10)
	if err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("claimed %d events, want 2 (one per aggregate)", len(batch))
	}
	if batch[0].ID != "e1" || batch[1].ID != "e3" {
		t.Fatalf("claimed %s,%s want e1,e3", batch[0].ID, batch[1].ID)
	}

	// e2 stays blocked while e1 is in flight
	batch, err = store.ClaimBatch(ctx, "w2", 10)
	if err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("claimed %d events while aggregate busy, want 0", len(batch))
	}

	if err := store.MarkSent(ctx, "e1"); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	batch, err = store.ClaimBatch(ctx, "w2", 10)
	if err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != "e2" {
		t.Fatalf("after ack got %v, want e2", batch)
	}
}

func TestClaimBatchNotDueEventBlocksAggregate(t *testing.T) {
	ctx := context.Background()
	store := NewOutboxStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	if err := store.Add(ctx, record("e1", "prop-1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(ctx, record("e2", "prop-1")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	batch, _ := store.ClaimBatch(ctx, "w1", 10)
	if len(batch) != 1 || batch[0].ID != "e1" {
		t.Fatalf("got %v, want e1", batch)
	}
	if err := store.MarkRetry(ctx, "e1", now.Add(time.Minute), "broker down"); err != nil {
		t.Fatalf("MarkRetry: %v", err)
	}

	// e1 is pending but not due; e2 must not jump the queue
	batch, _ = store.ClaimBatch(ctx, "w1", 10)
	if len(batch) != 0 {
		t.Fatalf("claimed %v before backoff elapsed, want none", batch)
	}

	store.SetClock(func() time.Time { return now.Add(2 * time.Minute) })
	batch, _ = store.ClaimBatch(ctx, "w1", 10)
	if len(batch) != 1 || batch[0].ID != "e1" {
		t.Fatalf("got %v after backoff, want e1 first", batch)
	}
	if batch[0].Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", batch[0].Attempts)
	}
}

func TestRetryFailedResetsAttempts(t *testing.T) {
	ctx := context.Background()
	store := NewOutboxStore()
	if err := store.Add(ctx, record("e1", "prop-1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := store.ClaimBatch(ctx, "w1", 1); err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	if err := store.MarkPoisoned(ctx, "e1", "gave up"); err != nil {
		t.Fatalf("MarkPoisoned: %v", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.Failed != 1 {
		t.Fatalf("failed = %d, want 1", stats.Failed)
	}
	// poisoned events never surface to workers
	if batch, _ := store.ClaimBatch(ctx, "w1", 10); len(batch) != 0 {
		t.Fatalf("claimed poisoned event %v", batch)
	}

	n, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if n != 1 {
		t.Fatalf("requeued = %d, want 1", n)
	}
	batch, _ := store.ClaimBatch(ctx, "w1", 10)
	if len(batch) != 1 || batch[0].ID != "e1" || batch[0].Attempts != 0 {
		t.Fatalf("got %v, want e1 with attempts reset", batch)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	store := NewOutboxStore()
	_ = store.Add(ctx, record("e1", "prop-1"))
	_ = store.Add(ctx, record("e2", "prop-2"))
	if _, err := store.ClaimBatch(ctx, "w1", 10); err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	_ = store.MarkSent(ctx, "e1")

	sent, err := store.List(ctx, "SENT", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sent) != 1 || sent[0].ID != "e1" {
		t.Fatalf("got %v, want only e1", sent)
	}
	all, _ := store.List(ctx, "", 10)
	if len(all) != 2 {
		t.Fatalf("got %d entries, want 2", len(all))
	}
	// newest first
	if all[0].ID != "e2" {
		t.Fatalf("first entry %s, want e2", all[0].ID)
	}
}
