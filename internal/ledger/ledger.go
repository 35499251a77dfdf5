// Package ledger guards parking_lots.reserved_count. Every change to the
// counter happens inside a repository.Tx that already holds the lot's
// exclusive lock, so a check and the write that follows it cannot be
// interleaved with another transaction on the same lot.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/parking-reservation/internal/metrics"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// ErrLotFull is returned by Increment when the lot has no free space.
var ErrLotFull = errors.New("parking lot is full")

// Availability reasons.
const (
	ReasonAvailable = "available"
	ReasonFull      = "full"
	ReasonNotFound  = "not found"
	ReasonError     = "error"
)

// Availability is an advisory snapshot; the authoritative check is the one
// repeated under the lock.
type Availability struct {
	Available     bool   `json:"available"`
	Reason        string `json:"reason"`
	Capacity      int    `json:"capacity"`
	ReservedCount int    `json:"reserved_count"`
	Free          int    `json:"free"`
}

// Ledger reads and mutates lot counters.
type Ledger struct {
	store  repository.Store
	logger *log.Logger
}

// New returns a Ledger over store. A nil logger gets a default one.
func New(store repository.Store, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.New("ledger")
	}
	return &Ledger{store: store, logger: logger}
}

// CheckAvailability reads committed state without locking. It fails
// closed: a missing lot or a read error reports unavailable.
func (l *Ledger) CheckAvailability(ctx context.Context, lotID uint64) Availability {
	lot, err := l.store.GetLot(ctx, lotID)
	if err != nil {
		if errors.Is(err, repository.ErrLotNotFound) {
			return Availability{Reason: ReasonNotFound}
		}
		l.logger.Warnj(log.JSON{"msg": "availability read failed", "lot_id": lotID, "error": err.Error()})
		return Availability{Reason: ReasonError}
	}
	a := Availability{
		Capacity:      lot.Capacity,
		ReservedCount: lot.ReservedCount,
		Free:          lot.Available(),
	}
	if lot.ReservedCount >= lot.Capacity {
		a.Reason = ReasonFull
		return a
	}
	a.Available = true
	a.Reason = ReasonAvailable
	return a
}

// Lock re-reads the lot inside tx and holds its lock until tx ends.
func (l *Ledger) Lock(ctx context.Context, tx repository.Tx, lotID uint64) (model.ParkingLot, error) {
	return tx.LockLot(ctx, lotID)
}

// Increment takes one space. lot must come from Lock on the same tx; it is
// updated in place so repeated calls stay consistent.
func (l *Ledger) Increment(ctx context.Context, tx repository.Tx, lot *model.ParkingLot) error {
	if lot.ReservedCount >= lot.Capacity {
		return ErrLotFull
	}
	next := lot.ReservedCount + 1
	if err := tx.SetReservedCount(ctx, lot.ID, next); err != nil {
		return fmt.Errorf("increment lot %d: %w", lot.ID, err)
	}
	lot.ReservedCount = next
	return nil
}

// Decrement releases one space. The counter never goes below zero; hitting
// the floor means counter and reservations disagree and is logged as such.
func (l *Ledger) Decrement(ctx context.Context, tx repository.Tx, lot *model.ParkingLot) error {
	next := lot.ReservedCount - 1
	if next < 0 {
		metrics.LedgerFloorHits.Inc()
		l.logger.Errorj(log.JSON{
			"msg":            "reserved_count already zero on decrement",
			"lot_id":         lot.ID,
			"reserved_count": lot.ReservedCount,
		})
		next = 0
	}
	if err := tx.SetReservedCount(ctx, lot.ID, next); err != nil {
		return fmt.Errorf("decrement lot %d: %w", lot.ID, err)
	}
	lot.ReservedCount = next
	return nil
}

// Publish records the committed counter of lot in the reserved gauge.
func Publish(lot model.ParkingLot) {
	metrics.LotReserved.WithLabelValues(strconv.FormatUint(lot.ID, 10)).Set(float64(lot.ReservedCount))
}
