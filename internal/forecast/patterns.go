package forecast

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// jitterSpan is the half-width of pattern jitter as a ratio.
const jitterSpan = 0.1

// DayPart is a named span of hours [StartHour, EndHour).
type DayPart struct {
	Name      string `json:"name"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
}

// DayParts used by the daily view.
var DayParts = []DayPart{
	{Name: "night", StartHour: 0, EndHour: 6},
	{Name: "morning", StartHour: 6, EndHour: 12},
	{Name: "afternoon", StartHour: 12, EndHour: 18},
	{Name: "evening", StartHour: 18, EndHour: 24},
}

// DayPartSummary is the average occupancy of one day part over the week.
type DayPartSummary struct {
	DayPart
	AverageOccupancy float64 `json:"average_occupancy"`
	PeakHour         int     `json:"peak_hour"`
	PeakOccupancy    float64 `json:"peak_occupancy"`
	CongestionLevel  string  `json:"congestion_level"`
}

// DailyPattern summarizes a typical day of a lot.
type DailyPattern struct {
	LotID    uint64           `json:"lot_id"`
	Days     int              `json:"days"`
	DayParts []DayPartSummary `json:"day_parts"`
}

// DaySeries is the hourly occupancy (percent) of one weekday.
type DaySeries struct {
	Weekday  int         `json:"weekday"`
	Name     string      `json:"name"`
	Hourly   [24]float64 `json:"hourly"`
	Average  float64     `json:"average"`
	PeakHour int         `json:"peak_hour"`
}

// WeeklyPattern is a 7x24 occupancy grid starting on Sunday.
type WeeklyPattern struct {
	LotID uint64      `json:"lot_id"`
	Days  int         `json:"days"`
	Week  []DaySeries `json:"week"`
}

// DailyPattern averages the pattern lookback per day part.
func (e *Engine) DailyPattern(ctx context.Context, lotID uint64) (DailyPattern, error) {
	lot, grid, err := e.patternGrid(ctx, lotID)
	if err != nil {
		return DailyPattern{}, err
	}
	out := DailyPattern{LotID: lot.ID, Days: e.patternDays, DayParts: make([]DayPartSummary, 0, len(DayParts))}
	for _, part := range DayParts {
		var sum float64
		peakHour, peak := part.StartHour, -1.0
		for h := part.StartHour; h < part.EndHour; h++ {
			var hourSum float64
			for wd := 0; wd < 7; wd++ {
				hourSum += grid[wd][h]
			}
			sum += hourSum
			if avg := hourSum / 7; avg > peak {
				peakHour, peak = h, avg
			}
		}
		avg := sum / float64(7*(part.EndHour-part.StartHour))
		out.DayParts = append(out.DayParts, DayPartSummary{
			DayPart:          part,
			AverageOccupancy: round1(avg * 100),
			PeakHour:         peakHour,
			PeakOccupancy:    round1(peak * 100),
			CongestionLevel:  CongestionLevel(avg),
		})
	}
	return out, nil
}

// WeeklyPattern returns the full weekday by hour grid.
func (e *Engine) WeeklyPattern(ctx context.Context, lotID uint64) (WeeklyPattern, error) {
	lot, grid, err := e.patternGrid(ctx, lotID)
	if err != nil {
		return WeeklyPattern{}, err
	}
	out := WeeklyPattern{LotID: lot.ID, Days: e.patternDays, Week: make([]DaySeries, 0, 7)}
	for wd := 0; wd < 7; wd++ {
		ds := DaySeries{Weekday: wd, Name: time.Weekday(wd).String()}
		var sum float64
		for h := 0; h < 24; h++ {
			ds.Hourly[h] = round1(grid[wd][h] * 100)
			sum += grid[wd][h]
			if grid[wd][h] > grid[wd][ds.PeakHour] {
				ds.PeakHour = h
			}
		}
		ds.Average = round1(sum / 24 * 100)
		out.Week = append(out.Week, ds)
	}
	return out, nil
}

// patternGrid computes the occupancy ratio of every (weekday, hour) over
// the pattern lookback. History failures degrade to the live ratio.
func (e *Engine) patternGrid(ctx context.Context, lotID uint64) (model.ParkingLot, [7][24]float64, error) {
	var grid [7][24]float64
	lot, err := e.store.GetLot(ctx, lotID)
	if err != nil {
		return model.ParkingLot{}, grid, err
	}
	hist, herr := e.HistoricalDemand(ctx, lotID, e.patternDays)
	live := lot.OccupancyRatio()
	capacity := float64(lot.Capacity)
	if capacity < 1 {
		capacity = 1
	}
	for wd := 0; wd < 7; wd++ {
		for h := 0; h < 24; h++ {
			var v float64
			switch {
			case herr != nil || hist.Empty():
				v = live
			default:
				n, _ := hist.Count(wd, h)
				v = float64(n) / capacity
			}
			if e.jitter {
				v += Jitter(lot.ID, wd, h)
			}
			grid[wd][h] = clamp01(v)
		}
	}
	if herr != nil {
		e.logger.Warnf("pattern history for lot %d unavailable: %v", lotID, herr)
	}
	return lot, grid, nil
}

// Jitter is a deterministic offset in [-0.1, 0.1] seeded by lot, weekday
// and hour.
func Jitter(lotID uint64, weekday, hour int) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatUint(lotID, 10) + ":" + strconv.Itoa(weekday) + ":" + strconv.Itoa(hour)))
	return float64(h.Sum32()%2001)/10000 - jitterSpan
}
