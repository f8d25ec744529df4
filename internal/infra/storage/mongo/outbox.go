package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staysync/internal/app/dto"
	"staysync/internal/app/handlers/syncadmin"
	appoutbox "staysync/internal/app/outbox"
	infraoutbox "staysync/internal/infra/outbox"
)

const (
	outboxPending  = "PENDING"
	outboxInFlight = "IN_FLIGHT"
	outboxSent     = "SENT"
	outboxFailed   = "FAILED"
)

// OutboxStore is the durable outbox. Add runs inside the ambient session, so
// an event exists exactly when the mutation that produced it committed.
type OutboxStore struct {
	col *mongo.Collection
}

func NewOutboxStore(db *mongo.Database) *OutboxStore {
	col := db.Collection("app_outbox")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &OutboxStore{col: col}
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	now := time.Now().UTC()
	doc := bson.M{
		"_id":             record.ID,
		"event_type":      record.EventType,
		"aggregate_type":  record.AggregateType,
		"aggregate_id":    record.AggregateID,
		"aggregate_key":   record.AggregateType + "|" + record.AggregateID,
		"payload":         record.Payload,
		"occurred_at":     record.OccurredAt,
		"headers":         record.Headers,
		"status":          outboxPending,
		"attempts":        0,
		"last_error":      "",
		"created_at":      now,
		"next_attempt_at": now,
	}
	_, err := s.col.InsertOne(ctx, doc)
	return err
}

func (s *OutboxStore) Flush(context.Context) error {
	return nil
}

type outboxDocument struct {
	ID            string            `bson:"_id"`
	EventType     string            `bson:"event_type"`
	AggregateType string            `bson:"aggregate_type"`
	AggregateID   string            `bson:"aggregate_id"`
	AggregateKey  string            `bson:"aggregate_key"`
	Payload       []byte            `bson:"payload"`
	OccurredAt    time.Time         `bson:"occurred_at"`
	Headers       map[string]string `bson:"headers"`
	Status        string            `bson:"status"`
	Attempts      int               `bson:"attempts"`
	LastError     string            `bson:"last_error"`
	CreatedAt     time.Time         `bson:"created_at"`
	NextAttemptAt time.Time         `bson:"next_attempt_at"`
	ClaimedBy     string            `bson:"claimed_by,omitempty"`
}

// ClaimBatch walks pending events in creation order. An aggregate with an
// in-flight or not-yet-due earlier event contributes nothing to the batch, so
// per-aggregate delivery order survives concurrent workers.
func (s *OutboxStore) ClaimBatch(ctx context.Context, workerID string, limit int) ([]infraoutbox.PendingEvent, error) {
	now := time.Now().UTC()

	inFlight, err := s.col.Distinct(ctx, "aggregate_key", bson.M{"status": outboxInFlight})
	if err != nil {
		return nil, err
	}
	busy := make(map[string]bool, len(inFlight))
	for _, v := range inFlight {
		if key, ok := v.(string); ok {
			busy[key] = true
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.col.Find(ctx, bson.M{"status": outboxPending}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []infraoutbox.PendingEvent
	for cursor.Next(ctx) {
		if limit > 0 && len(out) >= limit {
			break
		}
		var doc outboxDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		if busy[doc.AggregateKey] {
			continue
		}
		busy[doc.AggregateKey] = true
		if doc.NextAttemptAt.After(now) {
			continue
		}
		claimed, err := s.claimOne(ctx, doc.ID, workerID, now)
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}
		out = append(out, infraoutbox.PendingEvent{
			EventRecord: appoutbox.EventRecord{
				ID:            doc.ID,
				EventType:     doc.EventType,
				AggregateType: doc.AggregateType,
				AggregateID:   doc.AggregateID,
				Payload:       doc.Payload,
				OccurredAt:    doc.OccurredAt,
				Headers:       doc.Headers,
			},
			Attempts: doc.Attempts,
		})
	}
	return out, cursor.Err()
}

// claimOne flips one event to IN_FLIGHT; a zero match means another worker won.
func (s *OutboxStore) claimOne(ctx context.Context, id, workerID string, now time.Time) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": outboxPending},
		bson.M{"$set": bson.M{"status": outboxInFlight, "claimed_by": workerID, "claimed_at": now}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"status": outboxSent, "sent_at": time.Now().UTC(), "last_error": ""}})
	return err
}

func (s *OutboxStore) MarkRetry(ctx context.Context, id string, next time.Time, errMsg string) error {
	update := bson.M{
		"$set": bson.M{"status": outboxPending, "next_attempt_at": next.UTC(), "last_error": errMsg},
		"$inc": bson.M{"attempts": 1},
	}
	_, err := s.col.UpdateByID(ctx, id, update)
	return err
}

func (s *OutboxStore) MarkPoisoned(ctx context.Context, id string, errMsg string) error {
	update := bson.M{
		"$set": bson.M{"status": outboxFailed, "last_error": errMsg},
		"$inc": bson.M{"attempts": 1},
	}
	_, err := s.col.UpdateByID(ctx, id, update)
	return err
}

func (s *OutboxStore) List(ctx context.Context, status string, limit int) ([]dto.OutboxEntry, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []dto.OutboxEntry
	for cursor.Next(ctx) {
		var doc outboxDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, dto.OutboxEntry{
			ID:            doc.ID,
			EventType:     doc.EventType,
			AggregateType: doc.AggregateType,
			AggregateID:   doc.AggregateID,
			Status:        doc.Status,
			Attempts:      doc.Attempts,
			LastError:     doc.LastError,
			CreatedAt:     doc.CreatedAt,
			NextAttemptAt: doc.NextAttemptAt,
		})
	}
	return out, cursor.Err()
}

func (s *OutboxStore) Stats(ctx context.Context) (dto.OutboxStats, error) {
	var stats dto.OutboxStats
	for status, target := range map[string]*int64{
		outboxPending:  &stats.Pending,
		outboxInFlight: &stats.InFlight,
		outboxSent:     &stats.Sent,
		outboxFailed:   &stats.Failed,
	} {
		n, err := s.col.CountDocuments(ctx, bson.M{"status": status})
		if err != nil {
			return dto.OutboxStats{}, err
		}
		*target = n
	}
	return stats, nil
}

// RetryFailed re-queues every poisoned event with its attempt counter reset.
func (s *OutboxStore) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.col.UpdateMany(ctx,
		bson.M{"status": outboxFailed},
		bson.M{"$set": bson.M{"status": outboxPending, "attempts": 0, "next_attempt_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

var (
	_ appoutbox.Outbox      = (*OutboxStore)(nil)
	_ infraoutbox.Store     = (*OutboxStore)(nil)
	_ syncadmin.OutboxAdmin = (*OutboxStore)(nil)
)
