package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrInvalid is wrapped by validation failures.
var ErrInvalid = errors.New("invalid result")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy configures Do.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration // delay before attempt i+1 is BaseDelay * 2^i
	Name        string
	Verbose     bool
	Sleep       Sleeper
}

// Backoff returns the delay after the given zero-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// Do calls fetch until it returns a value that passes validate, up to MaxAttempts times.
// It sleeps Backoff(i) between attempts and never after the last one.
func Do[T any](ctx context.Context, p Policy, fetch func(ctx context.Context) (T, error), validate func(T) error) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if p.Verbose {
			log.Info().Str("op", p.Name).Int("attempt", attempt+1).Int("max", p.MaxAttempts).Msg("fetching")
		}

		v, err := fetch(ctx)
		if err == nil && validate != nil {
			err = validate(v)
		}
		if err == nil {
			return v, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("op", p.Name).Int("attempt", attempt+1).Int("max", p.MaxAttempts).Msg("attempt failed")

		if attempt == p.MaxAttempts-1 {
			break
		}
		if err := p.Sleep(ctx, p.Backoff(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%s: all %d attempts failed: %w", p.Name, p.MaxAttempts, lastErr)
}

// MinRows returns a validator requiring at least n elements, as reported by size.
func MinRows[T any](n int, size func(T) int) func(T) error {
	return func(v T) error {
		got := size(v)
		switch {
		case got == 0:
			return fmt.Errorf("%w: empty result", ErrInvalid)
		case got < n:
			return fmt.Errorf("%w: got %d rows, need at least %d", ErrInvalid, got, n)
		}
		return nil
	}
}
