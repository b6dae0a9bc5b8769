// Package limiter enforces the PIN attempt budget: a fixed window anchored at
// the first failure, a hard cap of wrong guesses inside it, and a full reset
// on success. The window expires lazily; nothing runs in the background.
package limiter

import (
	"context"
	"time"

	dErrors "guardtag/pkg/domain-errors"
)

const (
	// DefaultWindow is how long a block lasts, measured from the first failure.
	DefaultWindow = 15 * time.Minute
	// DefaultMaxFailures is the number of wrong guesses tolerated per window.
	DefaultMaxFailures = 5
)

// Store tracks failure counts per key with an expiring window.
type Store interface {
	// Increment adds one failure. The window starts at the first failure and
	// is never extended by later ones. Returns the new count and the time
	// left in the window.
	Increment(ctx context.Context, key string, window time.Duration) (count int, remaining time.Duration, err error)
	// Count returns the current failure count and the time left in the
	// window, both zero once the window has expired.
	Count(ctx context.Context, key string) (count int, remaining time.Duration, err error)
	// Reset discards the key's failures entirely.
	Reset(ctx context.Context, key string) error
}

// Limiter applies the attempt budget over a Store.
type Limiter struct {
	store  Store
	window time.Duration
	max    int
}

type Option func(*Limiter)

func WithWindow(window time.Duration) Option {
	return func(l *Limiter) { l.window = window }
}

func WithMaxFailures(max int) Option {
	return func(l *Limiter) { l.max = max }
}

// New creates a limiter with the default budget.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		window: DefaultWindow,
		max:    DefaultMaxFailures,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check reports whether the key is currently blocked. It must run before any
// hash comparison so a blocked caller costs no bcrypt work. A blocked key
// yields a rate_limited error carrying the remaining block in seconds.
func (l *Limiter) Check(ctx context.Context, key string) error {
	count, remaining, err := l.store.Count(ctx, key)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "attempt limiter unavailable")
	}
	if count >= l.max && remaining > 0 {
		return dErrors.NewRateLimited("too many failed attempts", retrySeconds(remaining))
	}
	return nil
}

// RecordFailure counts one wrong guess. When the guess exhausts the budget,
// the returned error is the same rate_limited error Check would produce.
func (l *Limiter) RecordFailure(ctx context.Context, key string) error {
	count, remaining, err := l.store.Increment(ctx, key, l.window)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "attempt limiter unavailable")
	}
	if count >= l.max {
		return dErrors.NewRateLimited("too many failed attempts", retrySeconds(remaining))
	}
	return nil
}

// Reset clears the key after a correct guess.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.store.Reset(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "attempt limiter unavailable")
	}
	return nil
}

func retrySeconds(remaining time.Duration) int {
	secs := int(remaining.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
