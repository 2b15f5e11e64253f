// Package usage enforces the per-user, per-day extraction quota.
//
// Counters are keyed by (user, UTC calendar day). A new day is a new key, so
// no reset job exists: yesterday's counter is simply never consulted again.
package usage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/voice-expense/internal/apperr"
	"github.com/dvloznov/voice-expense/internal/domain"
	"github.com/dvloznov/voice-expense/internal/logger"
)

// Store persists daily usage counters.
//
// Increment must be a single atomic "increment, creating at 1 if absent"
// operation. Implementations must never read the counter and write it back
// in separate steps.
type Store interface {
	// Count returns the counter for (userID, day), 0 when none exists.
	Count(ctx context.Context, userID string, day civil.Date) (int64, error)

	// Increment atomically adds one to the counter and returns a count that
	// includes this increment. Stores that cannot return the post-increment
	// value atomically may report a later one.
	Increment(ctx context.Context, userID string, day civil.Date) (int64, error)
}

// Limits are the daily extraction ceilings per tier.
type Limits struct {
	Trial int64
	Free  int64
	Pro   int64
}

// For returns the ceiling for tier. Unknown tiers get the free limit.
func (l Limits) For(tier domain.Tier) int64 {
	switch tier {
	case domain.TierTrial:
		return l.Trial
	case domain.TierPro:
		return l.Pro
	default:
		return l.Free
	}
}

// Snapshot is a read-only view of a user's quota for the current day.
type Snapshot struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

func newSnapshot(used, limit int64) Snapshot {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{Used: used, Limit: limit, Remaining: remaining}
}

// DefaultStoreTimeout bounds each counter read or write.
const DefaultStoreTimeout = 5 * time.Second

// Governor checks and records extraction usage.
type Governor struct {
	store        Store
	limits       Limits
	now          func() time.Time
	storeTimeout time.Duration
}

// Option configures a Governor.
type Option func(*Governor)

// WithClock overrides the time source used to pick the current day.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// WithStoreTimeout bounds every store call. Zero or negative disables it.
func WithStoreTimeout(d time.Duration) Option {
	return func(g *Governor) { g.storeTimeout = d }
}

// NewGovernor creates a Governor over store.
func NewGovernor(store Store, limits Limits, opts ...Option) *Governor {
	g := &Governor{store: store, limits: limits, now: time.Now, storeTimeout: DefaultStoreTimeout}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Governor) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.storeTimeout)
}

// Today returns the current UTC calendar day.
func (g *Governor) Today() civil.Date {
	return DayOf(g.now())
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) civil.Date {
	return civil.DateOf(t.UTC())
}

// CheckQuota fails with RateLimitExceeded when today's count has reached the
// tier's ceiling. It has no side effects.
func (g *Governor) CheckQuota(ctx context.Context, userID string, tier domain.Tier) error {
	snap, err := g.Remaining(ctx, userID, tier)
	if err != nil {
		return err
	}
	if snap.Used >= snap.Limit {
		log := logger.FromContext(ctx)
		log.Info().
			Str("user_id", userID).
			Str("tier", string(tier)).
			Int64("used", snap.Used).
			Int64("limit", snap.Limit).
			Msg("Daily extraction quota exhausted")
		return apperr.RateLimitExceeded()
	}
	return nil
}

// RecordUsage atomically increments today's counter for userID.
func (g *Governor) RecordUsage(ctx context.Context, userID string) error {
	day := g.Today()
	storeCtx, cancel := g.storeContext(ctx)
	defer cancel()

	count, err := g.store.Increment(storeCtx, userID, day)
	if err != nil {
		return fmt.Errorf("RecordUsage: increment %s/%s: %w", userID, day, err)
	}
	log := logger.FromContext(ctx)
	log.Debug().
		Str("user_id", userID).
		Str("day", day.String()).
		Int64("count", count).
		Msg("Recorded extraction usage")
	return nil
}

// Remaining returns today's usage snapshot for userID under tier.
func (g *Governor) Remaining(ctx context.Context, userID string, tier domain.Tier) (Snapshot, error) {
	day := g.Today()
	storeCtx, cancel := g.storeContext(ctx)
	defer cancel()

	used, err := g.store.Count(storeCtx, userID, day)
	if err != nil {
		return Snapshot{}, fmt.Errorf("Remaining: count %s/%s: %w", userID, day, err)
	}
	return newSnapshot(used, g.limits.For(tier)), nil
}
