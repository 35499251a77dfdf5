// Package forecast predicts lot occupancy from reservation history. It
// only reads committed data and never takes part in a reservation
// transaction; when anything goes wrong it degrades to the live occupancy
// ratio instead of failing.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/parking-reservation/internal/metrics"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// Request bounds.
const (
	MinForecastHours = 1
	MaxForecastHours = 24
	MinBestWindow    = 3
	MaxBestWindow    = 48
)

var (
	ErrInvalidHorizon = errors.New("hours ahead must be between 1 and 24")
	ErrInvalidWindow  = errors.New("time window must be between 3 and 48 hours")
)

// Congestion labels.
const (
	CongestionLow      = "Low"
	CongestionModerate = "Moderate"
	CongestionHigh     = "High"
	CongestionVeryHigh = "Very High"
)

// Point is one hourly forecast entry. OccupancyRate is a percentage with
// one decimal.
type Point struct {
	Timestamp          time.Time `json:"timestamp"`
	OccupancyRate      float64   `json:"occupancy_rate"`
	PredictedOccupied  int       `json:"predicted_occupied"`
	PredictedAvailable int       `json:"predicted_available"`
	CongestionLevel    string    `json:"congestion_level"`
}

// BestTime is the least congested upcoming hour.
type BestTime struct {
	BestTime           time.Time `json:"best_time"`
	OccupancyRate      float64   `json:"occupancy_rate"`
	PredictedAvailable int       `json:"predicted_available"`
	CongestionLevel    string    `json:"congestion_level"`
}

// Config tunes an Engine. Zero values get defaults.
type Config struct {
	HistoryDays int  // lookback for predictions, default 30
	PatternDays int  // lookback for pattern views, default 60
	ModelOrder  int  // AR order for refits, default 2
	Jitter      bool // deterministic noise on pattern views
	Clock       func() time.Time
}

// Engine answers forecast queries for every lot.
type Engine struct {
	store       repository.Store
	cache       Cache
	registry    *Registry
	predictor   Predictor
	now         func() time.Time
	historyDays int
	patternDays int
	order       int
	jitter      bool
	logger      *log.Logger
}

// NewEngine builds an engine. With a registry, fitted models are preferred
// and the heuristic answers for lots without one. A nil cache disables
// caching.
func NewEngine(store repository.Store, cache Cache, registry *Registry, cfg Config, logger *log.Logger) *Engine {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 30
	}
	if cfg.PatternDays <= 0 {
		cfg.PatternDays = 60
	}
	if cfg.ModelOrder <= 0 {
		cfg.ModelOrder = 2
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = log.New("forecast")
	}
	e := &Engine{
		store:       store,
		cache:       cache,
		registry:    registry,
		now:         cfg.Clock,
		historyDays: cfg.HistoryDays,
		patternDays: cfg.PatternDays,
		order:       cfg.ModelOrder,
		jitter:      cfg.Jitter,
		logger:      logger,
	}
	var p Predictor = Heuristic{HistoricalWeight: HistoricalWeight}
	if registry != nil {
		p = Fallback{
			Primary:   ModelPredictor{Registry: registry},
			Secondary: p,
			OnFallback: func(err error) {
				e.logger.Debugf("model prediction unavailable, using heuristic: %v", err)
			},
		}
	}
	e.predictor = p
	return e
}

// CongestionLevel labels an occupancy ratio in [0,1].
func CongestionLevel(ratio float64) string {
	switch {
	case ratio < 0.3:
		return CongestionLow
	case ratio < 0.7:
		return CongestionModerate
	case ratio < 0.9:
		return CongestionHigh
	default:
		return CongestionVeryHigh
	}
}

// HistoricalDemand aggregates the last daysBack days of active
// reservations of lotID.
func (e *Engine) HistoricalDemand(ctx context.Context, lotID uint64, daysBack int) (History, error) {
	if daysBack <= 0 {
		daysBack = e.historyDays
	}
	since := e.now().UTC().AddDate(0, 0, -daysBack)
	rows, err := e.store.DemandBuckets(ctx, lotID, since)
	if err != nil {
		return History{}, fmt.Errorf("demand buckets for lot %d: %w", lotID, err)
	}
	return NewHistory(rows), nil
}

// PredictOccupancy returns the predicted occupancy ratio of lotID at ts.
// Only an unknown lot or a failure to read the lot itself is an error.
func (e *Engine) PredictOccupancy(ctx context.Context, lotID uint64, ts time.Time) (float64, error) {
	lot, err := e.store.GetLot(ctx, lotID)
	if err != nil {
		return 0, err
	}
	hist := e.history(ctx, lot)
	return e.predict(ctx, lot, hist, ts), nil
}

// Forecast returns hoursAhead hourly points starting now.
func (e *Engine) Forecast(ctx context.Context, lotID uint64, hoursAhead int) ([]Point, error) {
	if hoursAhead < MinForecastHours || hoursAhead > MaxForecastHours {
		return nil, ErrInvalidHorizon
	}
	return e.forecast(ctx, lotID, hoursAhead)
}

// BestTime returns the least occupied hour within windowHours, skipping
// the current hour when there is anything after it.
func (e *Engine) BestTime(ctx context.Context, lotID uint64, windowHours int) (BestTime, error) {
	if windowHours < MinBestWindow || windowHours > MaxBestWindow {
		return BestTime{}, ErrInvalidWindow
	}
	pts, err := e.forecast(ctx, lotID, windowHours)
	if err != nil {
		return BestTime{}, err
	}
	if len(pts) > 1 {
		pts = pts[1:]
	}
	best := pts[0]
	for _, p := range pts[1:] {
		if p.OccupancyRate < best.OccupancyRate {
			best = p
		}
	}
	return BestTime{
		BestTime:           best.Timestamp,
		OccupancyRate:      best.OccupancyRate,
		PredictedAvailable: best.PredictedAvailable,
		CongestionLevel:    best.CongestionLevel,
	}, nil
}

func (e *Engine) forecast(ctx context.Context, lotID uint64, hours int) ([]Point, error) {
	key := Key{LotID: lotID, Hours: hours}
	if e.cache != nil {
		if pts, ok := e.cache.Get(ctx, key); ok {
			metrics.ForecastCacheHits.Inc()
			return pts, nil
		}
	}
	metrics.ForecastCacheMisses.Inc()

	lot, err := e.store.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	hist := e.history(ctx, lot)

	now := e.now()
	pts := make([]Point, 0, hours)
	for i := 0; i < hours; i++ {
		ts := now.Add(time.Duration(i) * time.Hour)
		pts = append(pts, newPoint(lot, ts, e.predict(ctx, lot, hist, ts)))
	}
	if e.cache != nil {
		e.cache.Set(ctx, key, pts)
	}
	return pts, nil
}

// history loads the prediction lookback, logging and returning an empty
// history on failure.
func (e *Engine) history(ctx context.Context, lot model.ParkingLot) History {
	hist, err := e.HistoricalDemand(ctx, lot.ID, e.historyDays)
	if err != nil {
		metrics.ForecastDegraded.Inc()
		e.logger.Warnj(log.JSON{"msg": "history unavailable, degrading to live ratio", "lot_id": lot.ID, "error": err.Error()})
		return History{}
	}
	return hist
}

func (e *Engine) predict(ctx context.Context, lot model.ParkingLot, hist History, ts time.Time) float64 {
	p, err := e.predictor.Predict(ctx, Input{Lot: lot, At: ts, History: hist})
	if err != nil {
		metrics.ForecastDegraded.Inc()
		e.logger.Warnj(log.JSON{"msg": "prediction failed, degrading to live ratio", "lot_id": lot.ID, "error": err.Error()})
		return lot.OccupancyRatio()
	}
	return clamp01(p)
}

func newPoint(lot model.ParkingLot, ts time.Time, ratio float64) Point {
	occupied := int(math.Round(ratio * float64(lot.Capacity)))
	available := lot.Capacity - occupied
	if available < 0 {
		available = 0
	}
	return Point{
		Timestamp:          ts,
		OccupancyRate:      round1(ratio * 100),
		PredictedOccupied:  occupied,
		PredictedAvailable: available,
		CongestionLevel:    CongestionLevel(ratio),
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// Refit rebuilds the model of one lot from its hourly occupancy series.
// A lot without enough history loses any previous model.
func (e *Engine) Refit(ctx context.Context, lotID uint64) error {
	if e.registry == nil {
		return nil
	}
	lot, err := e.store.GetLot(ctx, lotID)
	if err != nil {
		return err
	}
	end := e.now().UTC().Truncate(time.Hour)
	since := end.AddDate(0, 0, -e.patternDays)
	windows, err := e.store.ReservationWindows(ctx, lotID, since)
	if err != nil {
		return fmt.Errorf("reservation windows for lot %d: %w", lotID, err)
	}
	series := HourlySeries(windows, lot.Capacity, since, end)
	m, err := FitAR(series, e.order, end.Add(-time.Hour))
	if err != nil {
		e.registry.Delete(lotID)
		return err
	}
	m.FittedAt = e.now().UTC()
	e.registry.Put(lotID, m)
	return nil
}

// RefitAll refits every lot and returns how many now have a model.
func (e *Engine) RefitAll(ctx context.Context) (int, error) {
	if e.registry == nil {
		return 0, nil
	}
	lots, err := e.store.ListLots(ctx)
	if err != nil {
		return 0, err
	}
	for _, lot := range lots {
		if err := e.Refit(ctx, lot.ID); err != nil && !errors.Is(err, ErrInsufficientData) {
			e.logger.Warnj(log.JSON{"msg": "model refit failed", "lot_id": lot.ID, "error": err.Error()})
		}
	}
	n := e.registry.Len()
	metrics.ModelsFitted.Set(float64(n))
	return n, nil
}

// SaveModels persists the registry.
func (e *Engine) SaveModels() error {
	if e.registry == nil {
		return nil
	}
	return e.registry.Save()
}

// Warm precomputes the hours-ahead forecast of every lot.
func (e *Engine) Warm(ctx context.Context, hours int) error {
	lots, err := e.store.ListLots(ctx)
	if err != nil {
		return err
	}
	for _, lot := range lots {
		if _, err := e.Forecast(ctx, lot.ID, hours); err != nil {
			e.logger.Warnj(log.JSON{"msg": "cache warm failed", "lot_id": lot.ID, "error": err.Error()})
		}
	}
	return nil
}

// HourlySeries turns reservation windows into the occupancy ratio of each
// hour in [since, end). The series starts at the first hour that has any
// reservation so quiet lead-in time does not dilute the fit.
func HourlySeries(windows []repository.Window, capacity int, since, end time.Time) []float64 {
	if len(windows) == 0 || capacity <= 0 || !end.After(since) {
		return nil
	}
	start := since
	first := windows[0].Start.Truncate(time.Hour)
	for _, w := range windows[1:] {
		if t := w.Start.Truncate(time.Hour); t.Before(first) {
			first = t
		}
	}
	if first.After(start) {
		start = first
	}
	n := int(end.Sub(start) / time.Hour)
	if n <= 0 {
		return nil
	}

	diff := make([]int, n+1)
	for _, w := range windows {
		s, f := w.Start, w.End
		if s.Before(start) {
			s = start
		}
		if f.After(end) {
			f = end
		}
		if !f.After(s) {
			continue
		}
		lo := int(s.Sub(start) / time.Hour)
		hi := int(math.Ceil(float64(f.Sub(start)) / float64(time.Hour)))
		diff[lo]++
		diff[hi]--
	}
	out := make([]float64, n)
	active := 0
	for i := 0; i < n; i++ {
		active += diff[i]
		out[i] = clamp01(float64(active) / float64(capacity))
	}
	return out
}
