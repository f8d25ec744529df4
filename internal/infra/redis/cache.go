package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"staysync/internal/app/handlers/pricingops"
	"staysync/internal/infra/obs"
)

// Cache is the redis-backed read-through cache behind pricing and
// availability queries.
type Cache struct {
	c       *redis.Client
	metrics *obs.Metrics
}

func New(addr, password string, db int, metrics *obs.Metrics) *Cache {
	return &Cache{
		c:       redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		metrics: metrics,
	}
}

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		r.metrics.ObserveCache("redis", "miss")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	r.metrics.ObserveCache("redis", "hit")
	return true, json.Unmarshal(v, dst)
}

func (r *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.metrics.ObserveCache("redis", "set")
	return r.c.Set(ctx, key, b, ttl).Err()
}

func (r *Cache) Del(ctx context.Context, key string) error {
	r.metrics.ObserveCache("redis", "del")
	return r.c.Del(ctx, key).Err()
}

func (r *Cache) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *Cache) Close() error {
	return r.c.Close()
}

var _ pricingops.Cache = (*Cache)(nil)
