package llm

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
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
}

// DefaultRetry is the standard retry configuration.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry disables retries.
var NoRetry = RetryConfig{MaxAttempts: 1}

// Retrying wraps a client so retryable failures are attempted again with
// exponential backoff.
type Retrying struct {
	client Client
	cfg    RetryConfig
}

// WithRetry wraps client with cfg.
func WithRetry(client Client, cfg RetryConfig) *Retrying {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 1
	}
	return &Retrying{client: client, cfg: cfg}
}

// Complete implements Client.
func (r *Retrying) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	backoff := r.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, NewError("complete", err, false)
		}

		resp, err := r.client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}

		// Don't sleep after the last attempt
		if attempt < r.cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, NewError("complete", ctx.Err(), false)
			case <-time.After(jittered(backoff, r.cfg.Jitter)):
			}

			backoff = time.Duration(float64(backoff) * r.cfg.BackoffFactor)
			if r.cfg.MaxBackoff > 0 && backoff > r.cfg.MaxBackoff {
				backoff = r.cfg.MaxBackoff
			}
		}
	}
	return nil, lastErr
}

// jittered returns base +/- (base * jitter * random).
func jittered(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	amount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + amount)
}
