package extraction

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/dvloznov/voice-expense/internal/apperr"
	"github.com/dvloznov/voice-expense/internal/domain"
)

type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// RateLimited throttles outbound Parse calls of p. A request that cannot get
// a token before its context ends fails as a provider error.
func RateLimited(p Provider, limiter *rate.Limiter) Provider {
	if limiter == nil {
		return p
	}
	return &rateLimited{Provider: p, limiter: limiter}
}

// NewLimiter builds a limiter from a per-minute budget. A non-positive
// budget disables limiting.
func NewLimiter(perMinute float64, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), burst)
}

func (r *rateLimited) Parse(ctx context.Context, text string) (domain.ProvisionalResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.ProvisionalResult{}, apperr.ExtractionProvider(
			"AI provider is busy, please retry shortly",
			fmt.Errorf("wait for provider slot: %w", err),
		)
	}
	return r.Provider.Parse(ctx, text)
}
