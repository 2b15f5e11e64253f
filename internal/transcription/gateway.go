package transcription

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dvloznov/voice-expense/internal/apperr"
	"github.com/dvloznov/voice-expense/internal/logger"
)

// Gateway validates audio, stages it and hands it to a transcriber.
// Staged audio is released on every exit path.
type Gateway struct {
	stager      Stager
	transcriber Transcriber
	maxBytes    int64
	formats     []string
	timeout     time.Duration
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithMaxBytes sets the upload size limit.
func WithMaxBytes(n int64) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBytes = n
		}
	}
}

// WithFormats sets the accepted container formats, e.g. "mp3".
func WithFormats(formats []string) GatewayOption {
	return func(g *Gateway) {
		if len(formats) == 0 {
			return
		}
		g.formats = make([]string, 0, len(formats))
		for _, f := range formats {
			g.formats = append(g.formats, strings.ToLower(strings.TrimSpace(f)))
		}
	}
}

// WithTimeout bounds the provider call.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// NewGateway creates a transcription gateway.
func NewGateway(stager Stager, transcriber Transcriber, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		stager:      stager,
		transcriber: transcriber,
		maxBytes:    DefaultMaxBytes,
		formats:     DefaultFormats,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate checks size and format without touching the network.
func (g *Gateway) Validate(audio Audio) error {
	if audio.Body == nil {
		return apperr.Validation("Audio file is required")
	}
	if audio.Size > g.maxBytes {
		return g.tooLarge()
	}
	if !slices.Contains(g.formats, audio.Format()) {
		return apperr.Validation("Invalid audio file format. Supported formats: " + formatList(g.formats))
	}
	return nil
}

// Transcribe returns the provider's verbatim transcript of audio.
func (g *Gateway) Transcribe(ctx context.Context, audio Audio) (string, error) {
	log := logger.FromContext(ctx)

	if err := g.Validate(audio); err != nil {
		return "", err
	}

	staged, err := g.stager.Stage(ctx, audio, g.maxBytes)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return "", g.tooLarge()
		}
		return "", apperr.TranscriptionUnavailable(fmt.Errorf("stage audio: %w", err))
	}
	defer func() {
		// Cleanup must run even when the request was cancelled.
		if err := staged.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("path", staged.Path).Msg("failed to release staged audio")
		}
	}()

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.transcriber.Transcribe(callCtx, staged)
	if err != nil {
		log.Error().
			Err(err).
			Str("provider", g.transcriber.Name()).
			Dur("elapsed", time.Since(start)).
			Msg("transcription failed")
		return "", apperr.TranscriptionUnavailable(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.EmptyTranscription()
	}

	log.Debug().
		Str("provider", g.transcriber.Name()).
		Int64("audio_bytes", staged.Size).
		Int("transcript_length", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("audio transcribed")

	return text, nil
}

func (g *Gateway) tooLarge() error {
	return apperr.Validation("Audio file exceeds the maximum size of " + sizeLabel(g.maxBytes))
}
