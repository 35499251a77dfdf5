package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// MinSamples is the shortest hourly series a model is fitted on.
const MinSamples = 24

// MaxSteps caps how far past its last observation a model extrapolates.
const MaxSteps = 14 * 24

var (
	ErrNoModel          = errors.New("no fitted model for lot")
	ErrInsufficientData = errors.New("not enough hourly samples to fit a model")
	ErrHorizon          = errors.New("prediction too far past the fitted series")
)

// ARModel is an autoregressive model of the hourly occupancy ratio:
// x[t] = c + a1*x[t-1] + ... + ap*x[t-p].
type ARModel struct {
	Order    int       `json:"order"`
	Coef     []float64 `json:"coef"`   // intercept first, then lags 1..p
	Recent   []float64 `json:"recent"` // last p observations, oldest first
	LastHour time.Time `json:"last_hour"`
	Samples  int       `json:"samples"`
	FittedAt time.Time `json:"fitted_at"`
}

// FitAR fits an AR(order) model with intercept by least squares. lastHour
// is the start of the hour of the final sample.
func FitAR(series []float64, order int, lastHour time.Time) (ARModel, error) {
	if order < 1 || order > 3 {
		return ARModel{}, fmt.Errorf("model order %d not in [1,3]", order)
	}
	if len(series) < MinSamples {
		return ARModel{}, ErrInsufficientData
	}

	rows := len(series) - order
	x := mat.NewDense(rows, order+1, nil)
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		t := i + order
		x.Set(i, 0, 1)
		for k := 1; k <= order; k++ {
			x.Set(i, k, series[t-k])
		}
		y.Set(i, 0, series[t])
	}

	var beta mat.Dense
	if err := beta.Solve(x, y); err != nil {
		return ARModel{}, fmt.Errorf("least squares: %w", err)
	}
	coef := make([]float64, order+1)
	for j := range coef {
		v := beta.At(j, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ARModel{}, errors.New("least squares: non-finite coefficient")
		}
		coef[j] = v
	}

	recent := make([]float64, order)
	copy(recent, series[len(series)-order:])
	return ARModel{
		Order:    order,
		Coef:     coef,
		Recent:   recent,
		LastHour: lastHour.UTC(),
		Samples:  len(series),
	}, nil
}

// PredictAt rolls the model forward hour by hour up to the hour of at.
// Each step is clamped to [0,1] before feeding the next.
func (m ARModel) PredictAt(at time.Time) (float64, error) {
	if m.Order < 1 || len(m.Coef) != m.Order+1 || len(m.Recent) != m.Order {
		return 0, errors.New("malformed model")
	}
	steps := int(at.UTC().Truncate(time.Hour).Sub(m.LastHour) / time.Hour)
	if steps < 1 {
		steps = 1
	}
	if steps > MaxSteps {
		return 0, ErrHorizon
	}

	window := make([]float64, m.Order, m.Order+steps)
	copy(window, m.Recent)
	var v float64
	for s := 0; s < steps; s++ {
		v = m.Coef[0]
		n := len(window)
		for k := 1; k <= m.Order; k++ {
			v += m.Coef[k] * window[n-k]
		}
		v = clamp01(v)
		window = append(window, v)
	}
	return v, nil
}
