package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/voice-expense/internal/infra/redis"
)

func TestKey(t *testing.T) {
	day := civil.Date{Year: 2025, Month: 1, Day: 5}
	assert.Equal(t, "usage:u-1:2025-01-05", redis.Key("u-1", day))
}

func setupStore(t *testing.T) (*redis.UsageStore, *goredis.Client) {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewUsageStoreWithClient(client), client
}

func TestUsageStore_IncrementSetsExpiry(t *testing.T) {
	store, client := setupStore(t)
	ctx := context.Background()
	user := uuid.NewString()
	day := civil.DateOf(time.Now().UTC())

	n, err := store.Count(ctx, user, day)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Increment(ctx, user, day)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ttl, err := client.TTL(ctx, redis.Key(user, day)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestUsageStore_ConcurrentIncrements(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	user := uuid.NewString()
	day := civil.DateOf(time.Now().UTC())

	const workers = 100
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			_, err := store.Increment(ctx, user, day)
			return err
		})
	}
	require.NoError(t, g.Wait())

	n, err := store.Count(ctx, user, day)
	require.NoError(t, err)
	assert.EqualValues(t, workers, n)
}
