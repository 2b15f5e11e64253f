// Package pipeline runs one governed extraction: transcription, quota check,
// model extraction, normalization, validation and usage accounting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/voice-expense/internal/apperr"
	"github.com/dvloznov/voice-expense/internal/domain"
	"github.com/dvloznov/voice-expense/internal/errtrack"
	"github.com/dvloznov/voice-expense/internal/extraction"
	"github.com/dvloznov/voice-expense/internal/logger"
	"github.com/dvloznov/voice-expense/internal/metrics"
	"github.com/dvloznov/voice-expense/internal/transcription"
	"github.com/dvloznov/voice-expense/internal/usage"
)

// DefaultMaxTextLength bounds the transcript sent to the model.
const DefaultMaxTextLength = 5000

// AudioTranscriber turns uploaded audio into text.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, audio transcription.Audio) (string, error)
}

// Request is one extraction call. When Audio is set it takes precedence
// over Text.
type Request struct {
	UserID string
	Tier   domain.Tier
	Text   string
	Audio  *transcription.Audio
}

func (r Request) inputKind() string {
	if r.Audio != nil {
		return "audio"
	}
	return "text"
}

// Response is a validated result plus the caller's quota after this call.
type Response struct {
	Result     domain.ExtractionResult
	Usage      usage.Snapshot
	Transcript string
}

// Pipeline is the only entry point request handlers call.
type Pipeline struct {
	governor    *usage.Governor
	provider    extraction.Provider
	transcriber AudioTranscriber
	normalizer  *Normalizer

	maxTextLength   int
	providerTimeout time.Duration

	metrics *metrics.Metrics
	tracker errtrack.Tracker
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithTranscriber(t AudioTranscriber) Option {
	return func(p *Pipeline) { p.transcriber = t }
}

func WithNormalizer(n *Normalizer) Option {
	return func(p *Pipeline) { p.normalizer = n }
}

func WithMaxTextLength(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxTextLength = n
		}
	}
}

// WithProviderTimeout bounds each extraction provider call.
func WithProviderTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.providerTimeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithTracker(t errtrack.Tracker) Option {
	return func(p *Pipeline) { p.tracker = t }
}

// New creates a pipeline.
func New(governor *usage.Governor, provider extraction.Provider, opts ...Option) *Pipeline {
	p := &Pipeline{
		governor:      governor,
		provider:      provider,
		normalizer:    NewNormalizer(),
		maxTextLength: DefaultMaxTextLength,
		tracker:       errtrack.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline for req. Every failure is an *apperr.Error except
// usage store faults, which are returned wrapped.
func (p *Pipeline) Run(ctx context.Context, req Request) (resp *Response, err error) {
	log := logger.FromContext(ctx)

	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = apperr.CodeOf(err)
		}
		p.metrics.Request(req.inputKind(), outcome)
	}()

	// 1. Transcribe audio if present.
	text := req.Text
	if req.Audio != nil {
		if p.transcriber == nil {
			return nil, apperr.Validation("Audio transcription is not available")
		}
		start := time.Now()
		text, err = p.transcriber.Transcribe(ctx, *req.Audio)
		p.metrics.Upstream("transcription", start, err)
		if err != nil {
			p.report(ctx, req, "transcription", err)
			return nil, err
		}
	}

	// 2. Require some text.
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("Transcription or audio file is required")
	}

	// 3. Enforce the length limit.
	if n := utf8.RuneCountInString(text); n > p.maxTextLength {
		return nil, apperr.Validation(fmt.Sprintf(
			"Transcription is too long: %d characters, maximum is %d", n, p.maxTextLength))
	}

	// 4. Check quota before spending anything on the provider.
	if err := p.governor.CheckQuota(ctx, req.UserID, req.Tier); err != nil {
		if apperr.Is(err, apperr.KindRateLimitExceeded) {
			p.metrics.QuotaRejected(string(req.Tier))
		}
		return nil, err
	}

	// 5. Extract.
	provisional, err := p.parse(ctx, text)
	if err != nil {
		p.report(ctx, req, "extraction", err)
		return nil, err
	}

	// 6. Normalize.
	result := p.normalizer.Normalize(provisional, text)
	log.Debug().
		Str("provider", p.provider.Name()).
		Int("entries", len(result.Entries)).
		Str("confidence", string(result.Confidence)).
		Msg("extraction normalized")

	// 7. Validate. Clarification does not consume quota.
	if err := p.provider.ValidateConfidence(result); err != nil {
		log.Debug().Err(err).Msg("clarification required")
		return nil, err
	}

	// 8. Record usage. A provider call that succeeded is counted even if
	// the caller has gone away.
	if err := p.governor.RecordUsage(context.WithoutCancel(ctx), req.UserID); err != nil {
		return nil, err
	}
	p.metrics.UsageRecorded()

	// 9. Fresh snapshot.
	snapshot, err := p.governor.Remaining(ctx, req.UserID, req.Tier)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("entries", len(result.Entries)).
		Int64("used", snapshot.Used).
		Int64("remaining", snapshot.Remaining).
		Msg("extraction completed")

	return &Response{Result: result, Usage: snapshot, Transcript: text}, nil
}

func (p *Pipeline) parse(ctx context.Context, text string) (domain.ProvisionalResult, error) {
	callCtx := ctx
	if p.providerTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.providerTimeout)
		defer cancel()
	}

	start := time.Now()
	provisional, err := p.provider.Parse(callCtx, text)
	p.metrics.Upstream("extraction", start, err)
	if err == nil {
		return provisional, nil
	}

	if apperr.KindOf(err) == apperr.KindUnknown {
		msg := ""
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "AI provider timed out"
		}
		err = apperr.ExtractionProvider(msg, err)
	}
	return domain.ProvisionalResult{}, err
}

// report logs upstream failures and forwards them to the error tracker.
// User-correctable errors are not reported.
func (p *Pipeline) report(ctx context.Context, req Request, stage string, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && !appErr.Retryable() {
		return
	}
	log := logger.FromContext(ctx)
	log.Error().
		Err(err).
		Str("stage", stage).
		Str("provider", p.provider.Name()).
		Msg("upstream failure")
	p.tracker.CaptureError(ctx, err, map[string]string{
		"stage":   stage,
		"user_id": req.UserID,
		"tier":    string(req.Tier),
	})
}
