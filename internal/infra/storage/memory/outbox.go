package memory

import (
	"context"
	"sync"
	"time"

	"staysync/internal/app/dto"
	"staysync/internal/app/handlers/syncadmin"
	appoutbox "staysync/internal/app/outbox"
	infraoutbox "staysync/internal/infra/outbox"
)

const (
	statusPending  = "PENDING"
	statusInFlight = "IN_FLIGHT"
	statusSent     = "SENT"
	statusFailed   = "FAILED"
)

type outboxRecord struct {
	appoutbox.EventRecord
	Status        string
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	NextAttemptAt time.Time
	ClaimedBy     string
}

// OutboxStore is the in-memory outbox: app-side append, dispatcher-side
// claim/ack/retry, and the operator admin surface.
type OutboxStore struct {
	mu      sync.Mutex
	records []*outboxRecord
	now     func() time.Time
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{now: time.Now}
}

// SetClock overrides the store clock; tests only.
func (s *OutboxStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	s.records = append(s.records, &outboxRecord{
		EventRecord:   record,
		Status:        statusPending,
		CreatedAt:     now,
		NextAttemptAt: now,
	})
	return nil
}

func (s *OutboxStore) Flush(ctx context.Context) error {
	return nil
}

// ClaimBatch walks records in creation order. An aggregate with an in-flight
// or not-yet-due earlier event contributes nothing, so per-aggregate order
// survives concurrent workers.
func (s *OutboxStore) ClaimBatch(ctx context.Context, workerID string, limit int) ([]infraoutbox.PendingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	busy := map[string]bool{}
	for _, r := range s.records {
		if r.Status == statusInFlight {
			busy[aggregateKey(r.EventRecord)] = true
		}
	}
	var out []infraoutbox.PendingEvent
	for _, r := range s.records {
		if limit > 0 && len(out) >= limit {
			break
		}
		if r.Status != statusPending {
			continue
		}
		key := aggregateKey(r.EventRecord)
		if busy[key] {
			continue
		}
		busy[key] = true
		if r.NextAttemptAt.After(now) {
			continue
		}
		r.Status = statusInFlight
		r.ClaimedBy = workerID
		out = append(out, infraoutbox.PendingEvent{EventRecord: r.EventRecord, Attempts: r.Attempts})
	}
	return out, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.find(id); r != nil {
		r.Status = statusSent
		r.LastError = ""
	}
	return nil
}

func (s *OutboxStore) MarkRetry(ctx context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.find(id); r != nil {
		r.Status = statusPending
		r.Attempts++
		r.NextAttemptAt = next.UTC()
		r.LastError = errMsg
	}
	return nil
}

func (s *OutboxStore) MarkPoisoned(ctx context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.find(id); r != nil {
		r.Status = statusFailed
		r.Attempts++
		r.LastError = errMsg
	}
	return nil
}

func (s *OutboxStore) List(ctx context.Context, status string, limit int) ([]dto.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []dto.OutboxEntry
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, dto.OutboxEntry{
			ID:            r.ID,
			EventType:     r.EventType,
			AggregateType: r.AggregateType,
			AggregateID:   r.AggregateID,
			Status:        r.Status,
			Attempts:      r.Attempts,
			LastError:     r.LastError,
			CreatedAt:     r.CreatedAt,
			NextAttemptAt: r.NextAttemptAt,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *OutboxStore) Stats(ctx context.Context) (dto.OutboxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats dto.OutboxStats
	for _, r := range s.records {
		switch r.Status {
		case statusPending:
			stats.Pending++
		case statusInFlight:
			stats.InFlight++
		case statusSent:
			stats.Sent++
		case statusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// RetryFailed re-queues every poisoned event with its attempt counter reset.
func (s *OutboxStore) RetryFailed(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	var n int64
	for _, r := range s.records {
		if r.Status != statusFailed {
			continue
		}
		r.Status = statusPending
		r.Attempts = 0
		r.NextAttemptAt = now
		n++
	}
	return n, nil
}

func (s *OutboxStore) find(id string) *outboxRecord {
	for _, r := range s.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func aggregateKey(rec appoutbox.EventRecord) string {
	return rec.AggregateType + "|" + rec.AggregateID
}

var (
	_ appoutbox.Outbox      = (*OutboxStore)(nil)
	_ infraoutbox.Store     = (*OutboxStore)(nil)
	_ syncadmin.OutboxAdmin = (*OutboxStore)(nil)
)
