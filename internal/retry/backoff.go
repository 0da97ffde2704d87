// Package retry implements exponential backoff with jitter for the queue
// transport calls the worker loop makes. Review processing itself is never
// retried here; redelivery via the message lease is the retry mechanism for
// reviews.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config controls backoff behavior.
type Config struct {
	MaxRetries int           // retry attempts after the first try
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // backoff ceiling
	Multiplier float64       // exponential growth factor
	Jitter     bool          // spread retries to avoid thundering herd
}

// IsZero reports whether the config was left entirely unset, as opposed to
// deliberately configured with zero retries.
func (c Config) IsZero() bool {
	return c == Config{}
}

// DefaultConfig returns sensible defaults for transport calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// TransportConfig returns the backoff used for queue receive/delete calls.
// Receive runs in an endless loop, so the ceiling matters more than the
// retry count.
func TransportConfig() Config {
	return Config{
		MaxRetries: 5,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it immediately instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op with backoff until it succeeds, retries are exhausted, or the
// context ends. The last error is returned on failure. Errors wrapped with
// Permanent are returned (unwrapped) without further attempts.
func Do(ctx context.Context, cfg Config, name string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if attempt >= cfg.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := Delay(cfg, attempt)
		log.Warn().
			Err(lastErr).
			Str("operation", name).
			Int("attempt", attempt+1).
			Int("max_attempts", cfg.MaxRetries+1).
			Dur("delay", delay).
			Msg("operation failed, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// Delay computes the backoff for the given zero-based attempt.
func Delay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}
	return time.Duration(delay)
}

// transientPhrases are failure modes where retrying the transport call can
// help. Anything else is treated as critical by the worker loop.
var transientPhrases = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"timed out",
	"temporary failure",
	"service unavailable",
	"too many requests",
	"rate limit",
	"throttl",
	"429",
	"502",
	"503",
	"504",
	"no such host",
	"network unreachable",
	"broken pipe",
	"context deadline exceeded",
}

// IsTransient reports whether err looks like a retryable transport failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
