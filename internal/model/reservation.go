package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation statuses. A reservation is created directly in
// StatusCompleted; StatusCancelled is terminal.
const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
	StatusFailed    = "Failed"
)

// Reservation records a user's booking of one space in a lot for a time
// window. Rows are never deleted; cancellation flips Status.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – user who owns the reservation.
//  LotID     – lot being reserved.
//  StartTime – beginning of the reserved window (UTC).
//  EndTime   – end of the reserved window, strictly after StartTime.
//  Price     – amount charged at creation, two decimal places.
//  Status    – one of the Status* constants.
//  CreatedAt – creation timestamp.
type Reservation struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`                             // reservations.id
	UserID    uint64          `gorm:"not null;index" json:"user_id"`                                  // reservations.user_id
	LotID     uint64          `gorm:"not null;index:idx_reservations_lot_start,priority:1" json:"lot_id"` // reservations.lot_id
	StartTime time.Time       `gorm:"not null;index:idx_reservations_lot_start,priority:2" json:"start_time"`
	EndTime   time.Time       `gorm:"not null" json:"end_time"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Status    string          `gorm:"size:16;not null" json:"status"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
}

// TableName pins the table name used by migrations and queries.
func (Reservation) TableName() string { return "reservations" }

// Active reports whether the reservation still occupies a space.
func (r Reservation) Active() bool {
	return r.Status == StatusCompleted || r.Status == StatusPending
}

// Hours returns the reserved duration in fractional hours.
func (r Reservation) Hours() float64 {
	return r.EndTime.Sub(r.StartTime).Hours()
}
