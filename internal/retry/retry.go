// Package retry re-runs a whole unit of work when it fails with a transient
// error, sleeping with exponential backoff and jitter between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy describes how many times and how patiently to retry. Sleep and
// Rand are injectable so tests can run without real delays.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration // per-attempt deadline; zero disables it

	Sleep   func(ctx context.Context, d time.Duration) error
	Rand    func() float64
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default returns three attempts with a 100ms base delay.
func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
}

// ExhaustedError is returned when every attempt failed transiently.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Backoff returns the delay before retry number n (n >= 1):
// BaseDelay * 2^n * (0.5 + r) with r drawn from [0,1).
func (p Policy) Backoff(n int) time.Duration {
	r := rand.Float64
	if p.Rand != nil {
		r = p.Rand
	}
	factor := float64(int64(1)<<uint(n)) * (0.5 + r())
	return time.Duration(float64(p.BaseDelay) * factor)
}

// Do calls fn until it succeeds, fails with an error isTransient rejects,
// or MaxAttempts is reached. When an attempt runs out of its own deadline
// while ctx is still alive, that also counts as transient.
func (p Policy) Do(ctx context.Context, isTransient func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := p.run(ctx, attempt, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		transient := isTransient(err) || errors.Is(err, context.DeadlineExceeded)
		if !transient {
			return err
		}
		last = err
		if attempt == attempts {
			break
		}
		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: last}
}

func (p Policy) run(ctx context.Context, attempt int, fn func(ctx context.Context, attempt int) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx, attempt)
	}
	actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(actx, attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
