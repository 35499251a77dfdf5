package repository

import (
	"context"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// Store is the persistence contract of the engine. Reads outside of a
// transaction observe committed state only. Every mutation of
// parking_lots.reserved_count, reservations and payments goes through a Tx.
type Store interface {
	// Begin opens an exclusive, lot-scoped transaction. Acquiring the
	// underlying connection is bounded; a timeout yields ErrBusy.
	Begin(ctx context.Context) (Tx, error)

	GetLot(ctx context.Context, id uint64) (model.ParkingLot, error)
	ListLots(ctx context.Context) ([]model.ParkingLot, error)
	GetReservation(ctx context.Context, id uint64) (model.Reservation, error)
	ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error)
	ListPayments(ctx context.Context, reservationID uint64) ([]model.Payment, error)

	// DemandBuckets counts reservations in an active status whose start
	// time falls on or after since, grouped by weekday (0 = Sunday) and
	// hour of day.
	DemandBuckets(ctx context.Context, lotID uint64, since time.Time) ([]DemandBucket, error)
	// ReservationWindows returns the [start, end) windows of active
	// reservations that end after since, ordered by start time.
	ReservationWindows(ctx context.Context, lotID uint64, since time.Time) ([]Window, error)
}

// Tx is a unit of work holding exclusive locks on every lot it has touched.
// Locks are released by Commit or Rollback; nothing written through a Tx is
// visible to other readers before Commit returns.
type Tx interface {
	// LockLot reads a lot and holds its exclusive lock until the
	// transaction ends. Locking the same lot twice is allowed.
	LockLot(ctx context.Context, id uint64) (model.ParkingLot, error)
	// LockReservation reads a reservation and locks it for update.
	LockReservation(ctx context.Context, id uint64) (model.Reservation, error)

	InsertReservation(ctx context.Context, r *model.Reservation) error
	InsertPayment(ctx context.Context, p *model.Payment) error
	SetReservedCount(ctx context.Context, lotID uint64, n int) error
	SetReservationStatus(ctx context.Context, id uint64, status string) error

	Commit() error
	Rollback() error
}

// ReservationFilter narrows ListReservations. A nil UserID lists every
// reservation.
type ReservationFilter struct {
	UserID *uint64
	LotID  *uint64
}

// DemandBucket is one (weekday, hour) cell of historical demand.
type DemandBucket struct {
	Weekday int `gorm:"column:day_of_week"`
	Hour    int `gorm:"column:hour_of_day"`
	Count   int `gorm:"column:reservation_count"`
}

// Window is the reserved interval of a single reservation.
type Window struct {
	Start time.Time `gorm:"column:start_time"`
	End   time.Time `gorm:"column:end_time"`
}
