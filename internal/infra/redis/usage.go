// Package redis provides a Redis-backed usage counter store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/redis/go-redis/v9"
)

// Retention past the end of the counted day, so a late Count for
// yesterday still resolves.
const keyGrace = 48 * time.Hour

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// UsageStore keeps daily usage counters as Redis integers keyed by user and day.
type UsageStore struct {
	client *redis.Client
}

// NewUsageStore connects to Redis and verifies the connection.
func NewUsageStore(ctx context.Context, opts Options) (*UsageStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &UsageStore{client: client}, nil
}

// NewUsageStoreWithClient wraps an existing client.
func NewUsageStoreWithClient(client *redis.Client) *UsageStore {
	return &UsageStore{client: client}
}

// Close closes the Redis client.
func (s *UsageStore) Close() error {
	return s.client.Close()
}

// Count returns the counter for (userID, day), 0 when the key is absent.
func (s *UsageStore) Count(ctx context.Context, userID string, day civil.Date) (int64, error) {
	n, err := s.client.Get(ctx, Key(userID, day)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get usage: %w", err)
	}
	return n, nil
}

// Increment bumps the counter with INCR and sets its expiry in the same
// transaction.
func (s *UsageStore) Increment(ctx context.Context, userID string, day civil.Date) (int64, error) {
	key := Key(userID, day)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, day.AddDays(1).In(time.UTC).Add(keyGrace))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr usage: %w", err)
	}
	return incr.Val(), nil
}

// Key returns the Redis key for a user's counter on day.
func Key(userID string, day civil.Date) string {
	return fmt.Sprintf("usage:%s:%s", userID, day.String())
}
