// Package retry provides exponential backoff for transient failures: a
// bounded reattempt helper (Do) and an unbounded backoff sequence (Backoff)
// for connection loops that never give up.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           // Maximum number of attempts
	InitialDelay time.Duration // Initial delay between attempts
	MaxDelay     time.Duration // Maximum delay between attempts
	Multiplier   float64       // Backoff multiplier (typically 2.0)
	AddJitter    bool          // Add randomness to prevent thundering herd
}

// DefaultConfig returns sensible defaults for retry operations
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Do executes fn with exponential backoff retry
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.InitialDelay < 0 || cfg.MaxDelay < 0 {
		return errors.New("retry: delays cannot be negative")
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		if err := sleep(ctx, withJitter(delay, cfg.AddJitter)); err != nil {
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, err)
		}

		delay = nextDelay(delay, cfg.Multiplier, cfg.MaxDelay)
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

// Backoff yields an exponentially growing delay sequence without an attempt
// limit. Used by connection loops that reconnect forever.
type Backoff struct {
	cfg   Config
	delay time.Duration
}

// NewBackoff creates a backoff sequence from cfg (MaxAttempts is ignored).
func NewBackoff(cfg Config) *Backoff {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	return &Backoff{cfg: cfg, delay: cfg.InitialDelay}
}

// Next returns the delay to wait before the next attempt and advances the
// sequence.
func (b *Backoff) Next() time.Duration {
	d := withJitter(b.delay, b.cfg.AddJitter)
	b.delay = nextDelay(b.delay, b.cfg.Multiplier, b.cfg.MaxDelay)
	return d
}

// Reset returns the sequence to its initial delay, typically after a
// successful connection.
func (b *Backoff) Reset() {
	b.delay = b.cfg.InitialDelay
}

// Sleep waits for the next backoff delay, honoring context cancellation.
func (b *Backoff) Sleep(ctx context.Context) error {
	return sleep(ctx, b.Next())
}

func withJitter(delay time.Duration, add bool) time.Duration {
	if !add || delay < 4 {
		return delay
	}
	randMu.Lock()
	jitter := time.Duration(randSource.Int63n(int64(delay / 4)))
	randMu.Unlock()
	return delay + jitter
}

func nextDelay(delay time.Duration, multiplier float64, maxDelay time.Duration) time.Duration {
	next := float64(delay) * multiplier
	if next > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(next)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
