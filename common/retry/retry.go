// Package retry re-runs start-up steps that depend on a remote service, such
// as joining Matrix rooms while the homeserver is still coming up.
//
// Request-path calls (embeddings, chat completions) are never retried.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds the attempts of Do.
type Policy struct {
	// Attempts is the total number of tries, the first included. Values
	// below 1 mean a single try.
	Attempts int
	// Delay is the wait after the first failure; it doubles after each
	// further failure up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
}

// Startup is used for joining rooms at gateway start.
var Startup = Policy{Attempts: 4, Delay: time.Second, MaxDelay: 15 * time.Second}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the unwrapped error
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Do calls op until it succeeds, returns a Permanent error, the attempts run
// out, or ctx is done. The last error is returned; a cancellation is joined
// to it.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Delay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	maxDelay := max(p.MaxDelay, delay)

	var last error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(last, err)
		}
		last = op(ctx)
		if last == nil {
			return nil
		}
		var perm permanentError
		if errors.As(last, &perm) {
			return perm.err
		}
		if i == attempts {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(last, ctx.Err())
		case <-t.C:
		}
		delay = min(delay*2, maxDelay)
	}
	return last
}
