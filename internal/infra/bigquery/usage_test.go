package bigquery_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/voice-expense/internal/infra/bigquery"
)

func newTestStore(t *testing.T) *bigquery.UsageStore {
	t.Helper()
	project := os.Getenv("TEST_BIGQUERY_PROJECT")
	if project == "" {
		t.Skip("TEST_BIGQUERY_PROJECT not set")
	}
	dataset := os.Getenv("TEST_BIGQUERY_DATASET")
	if dataset == "" {
		dataset = "voice_expense_test"
	}

	store, err := bigquery.NewUsageStore(context.Background(), project, dataset)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUsageStore_IncrementAndCount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user := "it-" + uuid.NewString()
	day := civil.Date{Year: 2025, Month: 6, Day: 1}

	n, err := store.Increment(ctx, user, day)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = store.Increment(ctx, user, day)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = store.Count(ctx, user, day)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

// Concurrent MERGEs may conflict and fail; the ones that succeed are each
// counted once, and every returned value includes the caller's own increment.
func TestUsageStore_ConcurrentIncrementReadBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user := "it-" + uuid.NewString()
	day := civil.Date{Year: 2025, Month: 6, Day: 2}

	const workers = 4
	var (
		mu        sync.Mutex
		succeeded int64
		returned  []int64
	)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			n, err := store.Increment(ctx, user, day)
			if err != nil {
				return nil
			}
			mu.Lock()
			succeeded++
			returned = append(returned, n)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	total, err := store.Count(ctx, user, day)
	require.NoError(t, err)
	assert.Equal(t, succeeded, total)
	for _, n := range returned {
		assert.GreaterOrEqual(t, n, int64(1))
		assert.LessOrEqual(t, n, total)
	}
}
