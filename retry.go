package splitquery

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy decides whether a failed backend operation is worth repeating
// and how long to back off before each repeat.
type RetryPolicy interface {
	// Transient reports whether err is likely to succeed on retry.
	Transient(err error) bool
	// Delay returns the backoff before the next attempt, given how many
	// attempts have failed so far, and whether another attempt is allowed.
	Delay(failed int) (time.Duration, bool)
}

type RetryPolicyFactory interface {
	Create() RetryPolicy
}

type PolicyFactoryFunc func() RetryPolicy

func (f PolicyFactoryFunc) Create() RetryPolicy {
	return f()
}

// NoRetry surfaces every failure immediately.
type NoRetry struct{}

func (NoRetry) Transient(error) bool { return false }

func (NoRetry) Delay(int) (time.Duration, bool) { return 0, false }

// BackoffPolicy retries transient failures with exponential backoff.
type BackoffPolicy struct {
	// MaxAttempts is the total number of attempts allowed, including the
	// first one.
	MaxAttempts int
	BaseDelay   time.Duration
	// Classify overrides the transient test. Defaults to IsTransient.
	Classify func(error) bool
}

func (p BackoffPolicy) Transient(err error) bool {
	if p.Classify != nil {
		return p.Classify(err)
	}
	return IsTransient(err)
}

func (p BackoffPolicy) Delay(failed int) (time.Duration, bool) {
	if failed >= p.MaxAttempts {
		return 0, false
	}
	return p.BaseDelay << (failed - 1), true
}

// Executor wraps fallible backend operations with a retry policy. One
// executor is created per cursor and reused for every reader it opens, so
// policy state survives across attempts. The wrapped operation may run
// several times and must be safe to re-invoke.
type Executor struct {
	policy RetryPolicy
}

func NewExecutor(policy RetryPolicy) *Executor {
	return &Executor{policy: policy}
}

func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	failed := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !e.policy.Transient(err) {
			return err
		}
		failed++
		delay, again := e.policy.Delay(failed)
		if !again {
			return err
		}
		if serr := sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

func (e *transientError) Transient() bool { return true }

// MarkTransient tags err as a transient backend failure. Sources classify
// their driver errors with it; IsTransient recognizes the tag anywhere in
// the wrap chain.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}
