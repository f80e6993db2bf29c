package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/lumen-backend/internal/data/repos/repoerr"
	"github.com/yungbote/lumen-backend/internal/platform/envutil"
)

// ErrLoadTimeout is returned once every attempt saw a not-found record.
var ErrLoadTimeout = errors.New("record did not become available in time")

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 5 * time.Second
)

type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// IsNotFound decides which errors are worth waiting out. Defaults to
	// errors.Is(err, repoerr.ErrNotFound).
	IsNotFound func(error) bool
	// After replaces time.NewTimer in tests. It must return a channel that
	// fires once and a stop func.
	After func(d time.Duration) (<-chan time.Time, func() bool)
}

// OptionsFromEnv honours LOADER_MAX_ATTEMPTS.
func OptionsFromEnv() Options {
	return Options{MaxAttempts: envutil.Int("LOADER_MAX_ATTEMPTS", DefaultMaxAttempts)}
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.IsNotFound == nil {
		o.IsNotFound = func(err error) bool { return errors.Is(err, repoerr.ErrNotFound) }
	}
	if o.After == nil {
		o.After = func(d time.Duration) (<-chan time.Time, func() bool) {
			t := time.NewTimer(d)
			return t.C, t.Stop
		}
	}
	return o
}

// Delay is the wait after the given zero-based failed attempt:
// min(base*2^attempt, max).
func (o Options) Delay(attempt int) time.Duration {
	o = o.withDefaults()
	d := o.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= o.MaxDelay {
			return o.MaxDelay
		}
	}
	if d > o.MaxDelay {
		return o.MaxDelay
	}
	return d
}

// Load calls fn until it returns a record, a non-not-found error, or the
// attempts run out. The wait between attempts ends early when ctx is done.
func Load[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts Options) (T, error) {
	opts = opts.withDefaults()
	var zero T
	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !opts.IsNotFound(err) {
			return zero, err
		}
		lastErr = err

		wait, stop := opts.After(opts.Delay(attempt))
		select {
		case <-ctx.Done():
			stop()
			return zero, ctx.Err()
		case <-wait:
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %v", ErrLoadTimeout, opts.MaxAttempts, lastErr)
}
