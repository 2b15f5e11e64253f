// Package bootstrap assembles the extraction pipeline from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dvloznov/voice-expense/internal/config"
	"github.com/dvloznov/voice-expense/internal/errtrack"
	"github.com/dvloznov/voice-expense/internal/extraction"
	"github.com/dvloznov/voice-expense/internal/infra/bigquery"
	"github.com/dvloznov/voice-expense/internal/infra/postgres"
	"github.com/dvloznov/voice-expense/internal/infra/redis"
	"github.com/dvloznov/voice-expense/internal/metrics"
	"github.com/dvloznov/voice-expense/internal/pipeline"
	"github.com/dvloznov/voice-expense/internal/transcription"
	"github.com/dvloznov/voice-expense/internal/usage"
	"github.com/dvloznov/voice-expense/internal/usage/inmemory"
)

// App holds the wired components and the resources they own.
type App struct {
	Pipeline *pipeline.Pipeline
	Governor *usage.Governor
	Tracker  errtrack.Tracker

	closers []func() error
}

// Close releases every resource opened by Build, in reverse order.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Build wires the pipeline described by cfg. reg may be nil to skip metrics.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	app := &App{}
	built := false
	defer func() {
		if !built {
			_ = app.Close()
		}
	}()

	tracker, err := errtrack.New(cfg.ErrorTracking.SentryDSN, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init error tracking: %w", err)
	}
	app.Tracker = tracker

	store, err := newUsageStore(ctx, cfg.Usage, app)
	if err != nil {
		return nil, err
	}
	app.Governor = usage.NewGovernor(store, usage.Limits{
		Trial: int64(cfg.Quota.Trial),
		Free:  int64(cfg.Quota.Free),
		Pro:   int64(cfg.Quota.Pro),
	}, usage.WithStoreTimeout(cfg.Usage.Timeout))

	provider, err := newProvider(ctx, cfg.Providers)
	if err != nil {
		return nil, err
	}
	provider = extraction.RateLimited(provider,
		extraction.NewLimiter(cfg.Providers.ReqPerMinute, cfg.Providers.Burst))

	gateway, err := newGateway(ctx, cfg, app)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithTranscriber(gateway),
		pipeline.WithNormalizer(pipeline.NewNormalizer(pipeline.WithAliases(cfg.CategoryAliases()))),
		pipeline.WithMaxTextLength(cfg.Input.MaxTextLength),
		pipeline.WithProviderTimeout(cfg.Providers.Timeout),
		pipeline.WithTracker(tracker),
	}
	if reg != nil {
		opts = append(opts, pipeline.WithMetrics(metrics.New(reg)))
	}
	app.Pipeline = pipeline.New(app.Governor, provider, opts...)

	built = true
	return app, nil
}

func newUsageStore(ctx context.Context, cfg config.UsageStoreConfig, app *App) (usage.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return inmemory.NewStore(), nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("USAGE_STORE=postgres requires DATABASE_URL")
		}
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		app.onClose(func() error { db.Close(); return nil })
		return postgres.NewUsageStore(db), nil

	case "redis":
		store, err := redis.NewUsageStore(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		app.onClose(store.Close)
		return store, nil

	case "bigquery":
		if cfg.BigQueryProject == "" {
			return nil, errors.New("USAGE_STORE=bigquery requires BIGQUERY_PROJECT")
		}
		store, err := bigquery.NewUsageStore(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			return nil, err
		}
		app.onClose(store.Close)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown usage store %q", cfg.Backend)
	}
}

func newProvider(ctx context.Context, cfg config.ProvidersConfig) (extraction.Provider, error) {
	switch strings.ToLower(cfg.Extraction) {
	case "groq", "openai":
		if cfg.GroqAPIKey == "" {
			return nil, errors.New("EXTRACTION_PROVIDER=groq requires GROQ_API_KEY")
		}
		return extraction.NewOpenAIProvider(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel), nil
	case "gemini":
		return extraction.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Extraction)
	}
}

func newGateway(ctx context.Context, cfg *config.Config, app *App) (*transcription.Gateway, error) {
	var transcriber transcription.Transcriber
	switch strings.ToLower(cfg.Providers.Transcription) {
	case "groq", "openai", "whisper":
		if cfg.Providers.GroqAPIKey == "" {
			return nil, errors.New("TRANSCRIPTION_PROVIDER=groq requires GROQ_API_KEY")
		}
		transcriber = transcription.NewWhisperTranscriber(
			cfg.Providers.GroqAPIKey, cfg.Providers.GroqBaseURL, cfg.Providers.WhisperModel)
	case "gemini":
		t, err := transcription.NewGeminiTranscriber(ctx, cfg.Providers.GeminiAPIKey, cfg.Providers.GeminiModel)
		if err != nil {
			return nil, err
		}
		transcriber = t
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Providers.Transcription)
	}

	var stager transcription.Stager
	switch strings.ToLower(cfg.Input.AudioStaging) {
	case "", "local":
		stager = transcription.NewLocalStager(cfg.Input.AudioStagingDir)
	case "gcs":
		if cfg.Input.GCSBucket == "" {
			return nil, errors.New("AUDIO_STAGING=gcs requires GCS_BUCKET")
		}
		s, err := transcription.NewGCSStager(ctx, cfg.Input.GCSBucket, cfg.Input.AudioStagingDir)
		if err != nil {
			return nil, err
		}
		app.onClose(s.Close)
		stager = s
	default:
		return nil, fmt.Errorf("unknown audio staging %q", cfg.Input.AudioStaging)
	}

	return transcription.NewGateway(stager, transcriber,
		transcription.WithMaxBytes(cfg.Input.MaxAudioBytes),
		transcription.WithFormats(cfg.Input.AllowedAudioFormats),
		transcription.WithTimeout(cfg.Providers.Timeout),
	), nil
}
