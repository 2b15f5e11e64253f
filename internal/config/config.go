package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/dvloznov/voice-expense/internal/domain"
)

// Config is the complete service configuration, read from the environment.
type Config struct {
	App           AppConfig
	Quota         QuotaConfig
	Input         InputConfig
	Providers     ProvidersConfig
	Categories    CategoryConfig
	Usage         UsageStoreConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Port     string `envconfig:"HTTP_PORT" default:"8080"`
}

// QuotaConfig holds the per-tier daily extraction limits.
type QuotaConfig struct {
	Trial int `envconfig:"AI_PARSE_RATE_LIMIT_TRIAL" default:"10"`
	Free  int `envconfig:"AI_PARSE_RATE_LIMIT_FREE" default:"10"`
	Pro   int `envconfig:"AI_PARSE_RATE_LIMIT_PRO" default:"1000"`
}

type InputConfig struct {
	MaxTextLength       int      `envconfig:"MAX_TRANSCRIPTION_LENGTH" default:"5000"`
	MaxAudioBytes       int64    `envconfig:"MAX_AUDIO_BYTES" default:"26214400"`
	AllowedAudioFormats []string `envconfig:"ALLOWED_AUDIO_FORMATS" default:"mp3,wav,m4a,mp4,webm,ogg"`
	AudioStaging        string   `envconfig:"AUDIO_STAGING" default:"local"`
	AudioStagingDir     string   `envconfig:"AUDIO_STAGING_DIR"`
	GCSBucket           string   `envconfig:"GCS_BUCKET"`
}

type ProvidersConfig struct {
	Extraction    string `envconfig:"EXTRACTION_PROVIDER" default:"groq"`
	Transcription string `envconfig:"TRANSCRIPTION_PROVIDER" default:"groq"`

	GroqAPIKey   string `envconfig:"GROQ_API_KEY"`
	GroqBaseURL  string `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1/"`
	GroqModel    string `envconfig:"GROQ_MODEL" default:"llama-3.3-70b-versatile"`
	WhisperModel string `envconfig:"WHISPER_MODEL" default:"whisper-large-v3"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

	Timeout      time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
	ReqPerMinute float64       `envconfig:"PROVIDER_REQ_PER_MINUTE" default:"0"`
	Burst        int           `envconfig:"PROVIDER_BURST" default:"0"`
}

// CategoryConfig holds optional lenient aliases, e.g. "coffee:Food & Drink".
type CategoryConfig struct {
	Aliases map[string]string `envconfig:"CATEGORY_ALIASES"`
}

type UsageStoreConfig struct {
	Backend         string `envconfig:"USAGE_STORE" default:"memory"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	RedisAddr       string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword   string `envconfig:"REDIS_PASSWORD"`
	RedisDB         int    `envconfig:"REDIS_DB" default:"0"`
	BigQueryProject string `envconfig:"BIGQUERY_PROJECT"`
	BigQueryDataset string `envconfig:"BIGQUERY_DATASET" default:"expenses"`

	Timeout time.Duration `envconfig:"USAGE_STORE_TIMEOUT" default:"5s"`
}

type ErrorTrackingConfig struct {
	SentryDSN string `envconfig:"SENTRY_DSN"`
}

// Load reads configuration from environment variables, loading a .env file
// first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.Quota.Trial < 0 || c.Quota.Free < 0 || c.Quota.Pro < 0 {
		return fmt.Errorf("config: quota limits must not be negative")
	}
	if c.Input.MaxTextLength <= 0 {
		return fmt.Errorf("config: MAX_TRANSCRIPTION_LENGTH must be positive")
	}
	if c.Input.MaxAudioBytes <= 0 {
		return fmt.Errorf("config: MAX_AUDIO_BYTES must be positive")
	}
	for alias, target := range c.Categories.Aliases {
		if _, ok := domain.LookupCategory(target); !ok {
			return fmt.Errorf("config: alias %q points at unknown category %q", alias, target)
		}
	}
	switch strings.ToLower(c.Usage.Backend) {
	case "memory", "postgres", "redis", "bigquery":
	default:
		return fmt.Errorf("config: unknown USAGE_STORE %q", c.Usage.Backend)
	}
	return nil
}

// CategoryAliases returns the configured aliases resolved to canonical
// categories, keyed by lower-cased alias.
func (c *Config) CategoryAliases() map[string]domain.Category {
	out := make(map[string]domain.Category, len(c.Categories.Aliases))
	for alias, target := range c.Categories.Aliases {
		if cat, ok := domain.LookupCategory(target); ok {
			out[strings.ToLower(strings.TrimSpace(alias))] = cat
		}
	}
	return out
}
