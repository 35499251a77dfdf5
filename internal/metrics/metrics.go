package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reservations committed.
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_reservations_created_total",
		Help: "Total number of reservations committed",
	})

	// Failed reservation operations by error code (lot_full, busy, ...).
	ReservationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_reservation_failures_total",
		Help: "Reservation create/cancel failures by error code",
	}, []string{"op", "code"})

	// Cancellations by refund tier.
	Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_cancellations_total",
		Help: "Committed cancellations by refund tier",
	}, []string{"tier"})

	// Transaction retries after a transient store error.
	TxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_tx_retries_total",
		Help: "Transaction attempts retried after a transient error",
	}, []string{"op"})

	// Decrements that would have driven reserved_count below zero.
	LedgerFloorHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_ledger_floor_hits_total",
		Help: "Counter decrements clamped at zero (data integrity bug)",
	})

	// Committed reserved_count per lot.
	LotReserved = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "parking_lot_reserved",
		Help: "Reserved spaces per lot as of the last committed change",
	}, []string{"lot_id"})

	ForecastCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_forecast_cache_hits_total",
		Help: "Forecast requests served from cache",
	})

	ForecastCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_forecast_cache_misses_total",
		Help: "Forecast requests that recomputed predictions",
	})

	// Forecast computations that fell back to the live occupancy ratio.
	ForecastDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_forecast_degraded_total",
		Help: "Predictions that degraded to the live occupancy ratio",
	})

	ModelsFitted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parking_forecast_models",
		Help: "Number of lots with a fitted occupancy model",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_events_published_total",
		Help: "Reservation events published by outcome",
	}, []string{"type", "outcome"})
)
