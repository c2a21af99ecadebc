package retry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// Retryable optionally overrides IsRetryable.
	Retryable func(error) bool

	// Logger receives a warning before each retry. Nil disables logging.
	Logger *slog.Logger
}

// Default is the standard retry configuration.
var Default = Config{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry disables retries.
var NoRetry = Config{
	MaxAttempts: 1,
}

// Result contains the outcome of Do.
type Result[T any] struct {
	// Value is the result if successful.
	Value T

	// Err is the final error if all attempts failed, as a *CategorizedError.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent.
	Duration time.Duration
}

// Do calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) Result[T] {
	start := time.Now()
	backoff := cfg.InitialBackoff
	maxAttempts := max(cfg.MaxAttempts, 1)
	var lastErr error

	isRetryable := cfg.Retryable
	if isRetryable == nil {
		isRetryable = IsRetryable
	}

	fail := func(err error, category Category, attempts int, context string) Result[T] {
		return Result[T]{
			Err:      &CategorizedError{Err: err, Category: category, Attempts: attempts, Context: context},
			Attempts: attempts,
			Duration: time.Since(start),
		}
	}

	for attempt := range maxAttempts {
		if err := ctx.Err(); err != nil {
			return fail(err, CategoryPermanent, attempt, "context cancelled")
		}

		value, err := fn(ctx)
		if err == nil {
			return Result[T]{Value: value, Attempts: attempt + 1, Duration: time.Since(start)}
		}
		lastErr = err

		if !isRetryable(err) {
			return fail(err, Categorize(err), attempt+1, "")
		}

		if attempt == maxAttempts-1 {
			break
		}

		sleep := calculateBackoff(backoff, cfg.Jitter)
		if cfg.Logger != nil {
			cfg.Logger.Warn("retrying after transient error",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", sleep),
				slog.String("error", err.Error()),
			)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fail(ctx.Err(), CategoryPermanent, attempt+1, "context cancelled during backoff")
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return fail(lastErr, Categorize(lastErr), maxAttempts, "max retries exceeded")
}

// calculateBackoff returns the backoff duration with jitter applied.
func calculateBackoff(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || base <= 0 {
		return base
	}
	jitterAmount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + jitterAmount)
}

// Option configures retry behavior.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(cfg *Config) {
		cfg.MaxAttempts = n
	}
}

// WithBackoff sets the initial and maximum backoff durations.
func WithBackoff(initial, maxBackoff time.Duration) Option {
	return func(cfg *Config) {
		cfg.InitialBackoff = initial
		cfg.MaxBackoff = maxBackoff
	}
}

// WithJitter sets the jitter factor.
func WithJitter(j float64) Option {
	return func(cfg *Config) {
		cfg.Jitter = j
	}
}

// WithRetryable sets a custom retryability check.
func WithRetryable(fn func(error) bool) Option {
	return func(cfg *Config) {
		cfg.Retryable = fn
	}
}

// WithLogger logs each retry to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = logger
	}
}

// NewConfig creates a configuration from Default and the given options.
func NewConfig(opts ...Option) Config {
	cfg := Default
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
