// Package repository defines the persistence contract used by the
// reservation engine and the forecast engine, together with the sentinel
// errors shared by every implementation. Higher layers match these values
// with errors.Is to decide between a 404, a retry, or a hard failure.
package repository

import "errors"

// ErrLotNotFound is returned when a parking lot id does not exist.
var ErrLotNotFound = errors.New("parking lot not found")

// ErrReservationNotFound is returned when a reservation id does not exist.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrBusy signals that an exclusive lock or a pooled connection could not
// be obtained within its bounded wait, or that the database reported lock
// contention (lock wait timeout, deadlock). The whole transaction may be
// retried.
var ErrBusy = errors.New("store busy")

// ErrTxDone is returned when a transaction is used after Commit or Rollback.
var ErrTxDone = errors.New("transaction already finished")

// IsTransient reports whether err is worth retrying with a fresh
// transaction.
func IsTransient(err error) bool {
	return errors.Is(err, ErrBusy)
}
