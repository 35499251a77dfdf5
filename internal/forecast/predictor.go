package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// HistoricalWeight is the share of the heuristic blend taken from the
// historical bucket; the rest comes from the live occupancy ratio.
const HistoricalWeight = 0.7

// Input is what a Predictor sees for one point in time.
type Input struct {
	Lot     model.ParkingLot
	At      time.Time
	History History
}

// Predictor estimates the occupancy ratio of a lot at a point in time.
type Predictor interface {
	Predict(ctx context.Context, in Input) (float64, error)
}

// Heuristic blends the historical (weekday, hour) bucket with the current
// occupancy. A missing bucket uses the mean of all buckets; no history at
// all uses the live ratio alone.
type Heuristic struct {
	HistoricalWeight float64
}

func (h Heuristic) Predict(_ context.Context, in Input) (float64, error) {
	live := in.Lot.OccupancyRatio()
	if in.History.Empty() {
		return live, nil
	}
	at := in.At.UTC()
	avg := in.History.Mean()
	if n, ok := in.History.Count(int(at.Weekday()), at.Hour()); ok {
		avg = float64(n)
	}
	capacity := float64(in.Lot.Capacity)
	if capacity < 1 {
		capacity = 1
	}
	w := h.HistoricalWeight
	return clamp01(w*avg/capacity + (1-w)*live), nil
}

// ModelPredictor answers from a fitted per-lot model.
type ModelPredictor struct {
	Registry *Registry
}

func (m ModelPredictor) Predict(_ context.Context, in Input) (float64, error) {
	ar, ok := m.Registry.Get(in.Lot.ID)
	if !ok {
		return 0, ErrNoModel
	}
	return ar.PredictAt(in.At)
}

// Fallback tries Primary and answers from Secondary when it fails.
// OnFallback sees every primary failure other than ErrNoModel.
type Fallback struct {
	Primary    Predictor
	Secondary  Predictor
	OnFallback func(err error)
}

func (f Fallback) Predict(ctx context.Context, in Input) (float64, error) {
	p, err := f.Primary.Predict(ctx, in)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNoModel) && f.OnFallback != nil {
		f.OnFallback(err)
	}
	return f.Secondary.Predict(ctx, in)
}

func clamp01(v float64) float64 {
	if v != v || v < 0 { // NaN or negative
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
