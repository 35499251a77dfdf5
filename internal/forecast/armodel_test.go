package forecast

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func daily(t int) float64 {
	return 0.5 + 0.3*math.Sin(2*math.Pi*float64(t)/24)
}

func TestFitAR_RecoversDailyCycle(t *testing.T) {
	series := make([]float64, 72)
	for i := range series {
		series[i] = daily(i)
	}
	t0 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	last := t0.Add(71 * time.Hour)

	m, err := FitAR(series, 2, last)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Order)
	assert.Equal(t, 72, m.Samples)
	require.Len(t, m.Coef, 3)
	assert.InDelta(t, 2*math.Cos(2*math.Pi/24), m.Coef[1], 1e-6)
	assert.InDelta(t, -1.0, m.Coef[2], 1e-6)

	v, err := m.PredictAt(last.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, daily(72), v, 1e-6)

	v, err = m.PredictAt(last.Add(6*time.Hour + 20*time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, daily(77), v, 1e-6)

	_, err = m.PredictAt(last.Add(time.Duration(MaxSteps+1) * time.Hour))
	assert.ErrorIs(t, err, ErrHorizon)
}

func TestFitAR_Rejects(t *testing.T) {
	_, err := FitAR(make([]float64, MinSamples-1), 2, time.Now())
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = FitAR(make([]float64, 48), 0, time.Now())
	assert.Error(t, err)
	_, err = FitAR(make([]float64, 48), 4, time.Now())
	assert.Error(t, err)
}

func TestPredictAt_Clamps(t *testing.T) {
	m := ARModel{Order: 1, Coef: []float64{0.4, 1}, Recent: []float64{0.9}, LastHour: wed10}
	v, err := m.PredictAt(wed10.Add(3 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = ARModel{Order: 2, Coef: []float64{1}}.PredictAt(wed10)
	assert.Error(t, err)
}

func TestRegistry_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "forecast.json")

	empty := NewRegistry(path)
	require.NoError(t, empty.Load(), "a missing file is not an error")
	assert.Zero(t, empty.Len())

	r := NewRegistry(path)
	m := ARModel{Order: 1, Coef: []float64{0.1, 0.8}, Recent: []float64{0.5}, LastHour: wed10, Samples: 30}
	r.Put(3, m)
	r.Put(4, m)
	r.Delete(4)
	require.NoError(t, r.Save())

	loaded := NewRegistry(path)
	require.NoError(t, loaded.Load())
	assert.Equal(t, 1, loaded.Len())
	got, ok := loaded.Get(3)
	require.True(t, ok)
	assert.Equal(t, m.Coef, got.Coef)
	assert.True(t, got.LastHour.Equal(wed10))

	assert.NoError(t, NewRegistry("").Save())
}
