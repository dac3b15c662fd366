// Package retry provides the explicit retrying-call helper used by the
// external collaborators (source, sender, generator).
package retry

import (
	"context"
	"errors"
	"time"
)

// Kind classifies a failure for retry decisions.
type Kind int

const (
	// KindTransient failures (network, timeout, 5xx, rate limit) are retried.
	KindTransient Kind = iota
	// KindPermanent failures (4xx, auth, bad input) surface immediately.
	KindPermanent
	// KindDeleted marks content reported gone by the source. Terminal for
	// the post, never retried.
	KindDeleted
)

// Error tags an underlying error with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error { return &Error{Kind: KindTransient, Err: err} }

// Permanent wraps err as non-retryable.
func Permanent(err error) error { return &Error{Kind: KindPermanent, Err: err} }

// Deleted wraps err as content-gone.
func Deleted(err error) error { return &Error{Kind: KindDeleted, Err: err} }

// KindOf returns the tagged kind, defaulting to KindTransient for
// untagged errors so that unknown failures err on the side of retrying.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindTransient
}

// Policy bounds a retried call.
type Policy struct {
	Attempts int           // total tries, minimum 1
	Delay    time.Duration // delay before the second try; doubles each retry
	MaxDelay time.Duration // cap per-retry delay; 0 means uncapped
}

// DefaultPolicy matches the collaborators' shared defaults.
var DefaultPolicy = Policy{Attempts: 3, Delay: time.Second, MaxDelay: 30 * time.Second}

// Do calls fn up to p.Attempts times, sleeping with exponential doubling
// between tries. Only KindTransient failures are retried; others return
// immediately. The context cancels the wait between tries.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	delay := p.Delay
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if KindOf(err) != KindTransient || attempt >= p.Attempts {
			return err
		}
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
