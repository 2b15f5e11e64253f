package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
)

// UsageStore keeps daily usage counters in the ai_usage table.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a usage store over db.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Count returns the counter for (userID, day), 0 when no row exists.
func (s *UsageStore) Count(ctx context.Context, userID string, day civil.Date) (int64, error) {
	var count int64
	err := s.db.Pool.QueryRow(ctx, `
		SELECT count FROM ai_usage
		WHERE user_id = $1 AND usage_date = $2
	`, userID, dayParam(day)).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return count, nil
}

// Increment upserts the counter in one statement so concurrent requests for
// the same user and day never lose an update.
func (s *UsageStore) Increment(ctx context.Context, userID string, day civil.Date) (int64, error) {
	var count int64
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO ai_usage (user_id, usage_date, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, usage_date) DO UPDATE
		SET count = ai_usage.count + 1, updated_at = NOW()
		RETURNING count
	`, userID, dayParam(day)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment usage: %w", err)
	}
	return count, nil
}

func dayParam(day civil.Date) time.Time {
	return day.In(time.UTC)
}
