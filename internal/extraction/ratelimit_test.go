package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/dvloznov/voice-expense/internal/apperr"
	"github.com/dvloznov/voice-expense/internal/domain"
)

type countingProvider struct {
	ConfidenceValidator
	calls int
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) Parse(context.Context, string) (domain.ProvisionalResult, error) {
	c.calls++
	return domain.ProvisionalResult{}, nil
}

func TestRateLimited_NilLimiterIsPassthrough(t *testing.T) {
	inner := &countingProvider{}
	assert.Same(t, Provider(inner), RateLimited(inner, nil))
	assert.Nil(t, NewLimiter(0, 5))
}

func TestRateLimited_WaitExceedsDeadline(t *testing.T) {
	inner := &countingProvider{}
	p := RateLimited(inner, rate.NewLimiter(rate.Every(time.Hour), 1))

	_, err := p.Parse(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Parse(ctx, "second")

	assert.True(t, apperr.Is(err, apperr.KindExtractionProvider))
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "counting", p.Name())
}

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(120, 0)
	require.NotNil(t, l)
	assert.Equal(t, rate.Limit(2), l.Limit())
	assert.Equal(t, 1, l.Burst())
}
