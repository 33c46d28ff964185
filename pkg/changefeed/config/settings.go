package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Sentinel errors.
var (
	// ErrUnsupportedFormat indicates a config file extension that is not YAML or JSON.
	ErrUnsupportedFormat = errors.New("unsupported config file extension")

	// ErrInvalidSettings indicates settings that fail validation.
	ErrInvalidSettings = errors.New("invalid settings")
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CHANGEFEED_"

// Settings configures a changefeed process.
type Settings struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL"`

	// Metrics enables OpenTelemetry metrics.
	Metrics bool `env:"METRICS"`

	// Tracing enables OpenTelemetry spans.
	Tracing bool `env:"TRACING"`

	Delivery DeliverySettings `envPrefix:"DELIVERY_"`
}

// DeliverySettings configures the dispatcher and its sinks.
type DeliverySettings struct {
	QueueSize      int           `env:"QUEUE_SIZE"`
	Blocking       bool          `env:"BLOCKING"`
	MaxConcurrency int           `env:"MAX_CONCURRENCY"`
	RetryAttempts  int           `env:"RETRY_ATTEMPTS"`
	RetryBackoff   time.Duration `env:"RETRY_BACKOFF"`
	RetryMaxWait   time.Duration `env:"RETRY_MAX_WAIT"`
	DeadLetterSize int           `env:"DEAD_LETTER_SIZE"`

	// OutboxPath enables the SQLite outbox when set.
	OutboxPath string `env:"OUTBOX_PATH"`

	// RedisURL enables the Redis sink when set.
	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL"`

	// LogBatches enables the log sink.
	LogBatches bool `env:"LOG_BATCHES"`
}

// DefaultSettings returns the settings used when nothing overrides them.
func DefaultSettings() Settings {
	return Settings{
		LogLevel: "info",
		Delivery: DeliverySettings{
			QueueSize:      1024,
			RetryAttempts:  3,
			RetryBackoff:   100 * time.Millisecond,
			RetryMaxWait:   5 * time.Second,
			DeadLetterSize: 10000,
			RedisChannel:   "changefeed.events",
		},
	}
}

// Load builds settings from defaults, the optional file at path, and the
// environment, in that order. An empty path skips the file.
func Load(path string) (Settings, error) {
	s := DefaultSettings()

	if path != "" {
		cfg, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		s.Apply(cfg)
	}

	if err := ParseEnv(&s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ParseEnv overrides s with every CHANGEFEED_* variable that is set.
// Unset variables leave the current values alone.
func ParseEnv(s *Settings) error {
	if err := env.ParseWithOptions(s, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Apply overrides s with the values present in cfg.
func (s *Settings) Apply(cfg Config) {
	s.LogLevel = cfg.String("log_level", s.LogLevel)
	s.Metrics = cfg.Bool("metrics", s.Metrics)
	s.Tracing = cfg.Bool("tracing", s.Tracing)

	d := cfg.Section("delivery")
	s.Delivery.QueueSize = d.Int("queue_size", s.Delivery.QueueSize)
	s.Delivery.Blocking = d.Bool("blocking", s.Delivery.Blocking)
	s.Delivery.MaxConcurrency = d.Int("max_concurrency", s.Delivery.MaxConcurrency)
	s.Delivery.RetryAttempts = d.Int("retry.attempts", s.Delivery.RetryAttempts)
	s.Delivery.RetryBackoff = d.Duration("retry.backoff", s.Delivery.RetryBackoff)
	s.Delivery.RetryMaxWait = d.Duration("retry.max_wait", s.Delivery.RetryMaxWait)
	s.Delivery.DeadLetterSize = d.Int("dead_letter_size", s.Delivery.DeadLetterSize)
	s.Delivery.OutboxPath = d.String("outbox_path", s.Delivery.OutboxPath)
	s.Delivery.RedisURL = d.String("redis.url", s.Delivery.RedisURL)
	s.Delivery.RedisChannel = d.String("redis.channel", s.Delivery.RedisChannel)
	s.Delivery.LogBatches = d.Bool("log_batches", s.Delivery.LogBatches)
}

// Validate checks the settings for values the dispatcher cannot use.
func (s Settings) Validate() error {
	var errs []error
	if _, err := parseLevel(s.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if s.Delivery.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("delivery queue size must be positive, got %d", s.Delivery.QueueSize))
	}
	if s.Delivery.RetryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("delivery retry attempts must be positive, got %d", s.Delivery.RetryAttempts))
	}
	if s.Delivery.RetryBackoff < 0 || s.Delivery.RetryMaxWait < 0 {
		errs = append(errs, errors.New("delivery retry durations must not be negative"))
	}
	if s.Delivery.RedisURL != "" && s.Delivery.RedisChannel == "" {
		errs = append(errs, errors.New("delivery redis channel is required with a redis url"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}

// Level returns the slog level for LogLevel, defaulting to info.
func (s Settings) Level() slog.Level {
	level, err := parseLevel(s.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}
