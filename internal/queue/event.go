// Package queue defines the reservation events exchanged over the message
// broker and the publishers that deliver them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// Event types.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a reservation transaction commits.
// It carries enough for downstream consumers to audit or notify without
// querying the primary database.
type ReservationEvent struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	LotID         uint64 `json:"lot_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Price         string `json:"price"`
	RefundAmount  string `json:"refund_amount,omitempty"`
	RefundTier    string `json:"refund_tier,omitempty"`
	Message       string `json:"message,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

// NewReservationEvent builds an event for r with a fresh id.
func NewReservationEvent(typ string, r model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          typ,
		ReservationID: r.ID,
		UserID:        r.UserID,
		LotID:         r.LotID,
		StartTime:     r.StartTime.UTC().Format(time.RFC3339),
		EndTime:       r.EndTime.UTC().Format(time.RFC3339),
		Price:         r.Price.StringFixed(2),
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
