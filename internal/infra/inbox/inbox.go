package inbox

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store deduplicates inbound channel deliveries. Keys are marked only after
// the command behind them committed, so a crash between the two replays the
// delivery instead of dropping it.
type Store interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// MemoryStore is the test and single-process implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]struct{})}
}

func (s *MemoryStore) Seen(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *MemoryStore) Mark(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
	return nil
}

// MongoStore keeps seen keys with a TTL so the collection does not grow
// unbounded; the window only needs to outlive channel redelivery.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database, ttl time.Duration) *MongoStore {
	col := db.Collection("channel_inbox")
	if ttl > 0 {
		idx := mongo.IndexModel{
			Keys:    bson.D{{Key: "seen_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
		}
		_, _ = col.Indexes().CreateOne(context.Background(), idx)
	}
	return &MongoStore{col: col}
}

func (s *MongoStore) Seen(ctx context.Context, key string) (bool, error) {
	err := s.col.FindOne(ctx, bson.M{"_id": key}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MongoStore) Mark(ctx context.Context, key string) error {
	_, err := s.col.ReplaceOne(ctx,
		bson.M{"_id": key},
		bson.M{"_id": key, "seen_at": time.Now().UTC()},
		options.Replace().SetUpsert(true),
	)
	return err
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*MongoStore)(nil)
)
