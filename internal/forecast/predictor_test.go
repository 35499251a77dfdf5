package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// 2025-02-26 is a Wednesday.
var wed10 = time.Date(2025, 2, 26, 10, 0, 0, 0, time.UTC)

func TestHeuristic(t *testing.T) {
	ctx := context.Background()
	lot := model.ParkingLot{ID: 1, Capacity: 10, ReservedCount: 5}
	h := Heuristic{HistoricalWeight: HistoricalWeight}

	// no history: the live ratio alone
	p, err := h.Predict(ctx, Input{Lot: lot, At: wed10})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-9)

	hist := NewHistory([]repository.DemandBucket{
		{Weekday: 3, Hour: 10, Count: 4},
		{Weekday: 3, Hour: 11, Count: 8},
	})
	p, err = h.Predict(ctx, Input{Lot: lot, At: wed10, History: hist})
	require.NoError(t, err)
	assert.InDelta(t, 0.7*0.4+0.3*0.5, p, 1e-9)

	// a bucket without data falls back to the mean of the others (6)
	p, err = h.Predict(ctx, Input{Lot: lot, At: wed10.Add(5 * time.Hour), History: hist})
	require.NoError(t, err)
	assert.InDelta(t, 0.7*0.6+0.3*0.5, p, 1e-9)

	// demand above capacity clamps
	hot := NewHistory([]repository.DemandBucket{{Weekday: 3, Hour: 10, Count: 50}})
	p, err = h.Predict(ctx, Input{Lot: lot, At: wed10, History: hot})
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)
}

func TestHistory(t *testing.T) {
	h := NewHistory([]repository.DemandBucket{
		{Weekday: 1, Hour: 9, Count: 2},
		{Weekday: 1, Hour: 9, Count: 1},
		{Weekday: 5, Hour: 17, Count: 3},
	})
	assert.False(t, h.Empty())
	assert.Equal(t, 2, h.Len())
	n, ok := h.Count(1, 9)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = h.Count(0, 0)
	assert.False(t, ok)
	assert.InDelta(t, 3.0, h.Mean(), 1e-9)
	assert.True(t, History{}.Empty())
	assert.Zero(t, History{}.Mean())
}

type stubPredictor struct {
	v   float64
	err error
}

func (s stubPredictor) Predict(context.Context, Input) (float64, error) { return s.v, s.err }

func TestFallback(t *testing.T) {
	ctx := context.Background()
	var seen []error
	f := Fallback{
		Primary:    stubPredictor{err: ErrNoModel},
		Secondary:  stubPredictor{v: 0.3},
		OnFallback: func(err error) { seen = append(seen, err) },
	}
	p, err := f.Predict(ctx, Input{})
	require.NoError(t, err)
	assert.Equal(t, 0.3, p)
	assert.Empty(t, seen, "a lot without a model is not worth reporting")

	f.Primary = stubPredictor{err: ErrHorizon}
	_, err = f.Predict(ctx, Input{})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.True(t, errors.Is(seen[0], ErrHorizon))

	f.Primary = stubPredictor{v: 0.9}
	p, _ = f.Predict(ctx, Input{})
	assert.Equal(t, 0.9, p)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.2))
	assert.Equal(t, 1.0, clamp01(1.7))
	assert.Equal(t, 0.0, clamp01(math.NaN()))
	assert.Equal(t, 0.42, clamp01(0.42))
}

func TestCongestionLevel(t *testing.T) {
	cases := map[float64]string{
		0.0:  CongestionLow,
		0.29: CongestionLow,
		0.3:  CongestionModerate,
		0.69: CongestionModerate,
		0.7:  CongestionHigh,
		0.89: CongestionHigh,
		0.9:  CongestionVeryHigh,
		0.95: CongestionVeryHigh,
		1.0:  CongestionVeryHigh,
	}
	for ratio, want := range cases {
		assert.Equal(t, want, CongestionLevel(ratio), "ratio %.2f", ratio)
	}
}
