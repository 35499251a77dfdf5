package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func isFlaky(err error) bool { return errors.Is(err, errFlaky) }

func fastPolicy(attempts int, slept *[]time.Duration) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   100 * time.Millisecond,
		Rand:        func() float64 { return 0.5 },
		Sleep: func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

func TestBackoff(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, Rand: func() float64 { return 0.5 }}
	assert.Equal(t, 200*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(2))

	p.Rand = func() float64 { return 0 }
	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	p.Rand = func() float64 { return 0.999 }
	assert.InDelta(t, float64(300*time.Millisecond), float64(p.Backoff(1)), float64(time.Millisecond))
}

func TestDo_SucceedsAfterTransient(t *testing.T) {
	var slept []time.Duration
	p := fastPolicy(3, &slept)
	var retried []int
	p.OnRetry = func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) }

	calls := 0
	err := p.Do(context.Background(), isFlaky, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, slept)
}

func TestDo_PermanentErrorStops(t *testing.T) {
	var slept []time.Duration
	p := fastPolicy(3, &slept)
	boom := errors.New("boom")

	calls := 0
	err := p.Do(context.Background(), isFlaky, func(context.Context, int) error {
		calls++
		return boom
	})
	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, slept)
}

func TestDo_Exhausted(t *testing.T) {
	var slept []time.Duration
	p := fastPolicy(3, &slept)

	calls := 0
	err := p.Do(context.Background(), isFlaky, func(context.Context, int) error {
		calls++
		return errFlaky
	})
	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
	assert.Len(t, slept, 2)
}

func TestDo_AttemptTimeoutRetries(t *testing.T) {
	var slept []time.Duration
	p := fastPolicy(2, &slept)
	p.AttemptTimeout = 10 * time.Millisecond

	calls := 0
	err := p.Do(context.Background(), isFlaky, func(ctx context.Context, attempt int) error {
		calls++
		if attempt == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ParentCancelStops(t *testing.T) {
	var slept []time.Duration
	p := fastPolicy(5, &slept)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := p.Do(ctx, isFlaky, func(context.Context, int) error {
		calls++
		cancel()
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), isFlaky, func(context.Context, int) error {
		calls++
		return errFlaky
	})
	var ex *ExhaustedError
	assert.ErrorAs(t, err, &ex)
	assert.Equal(t, 1, calls)
}
