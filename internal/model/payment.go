package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment kinds. A refund is a separate row; the original charge is never
// rewritten.
const (
	PaymentCharge = "charge"
	PaymentRefund = "refund"
)

// Payment methods.
const (
	MethodCreditCard = "CreditCard"
	MethodPayPal     = "PayPal"
	MethodOther      = "Other"
)

// Payment statuses.
const (
	PaymentPending   = "Pending"
	PaymentCompleted = "Completed"
	PaymentFailed    = "Failed"
)

// Payment is one append-only row in a reservation's payment ledger. Amount
// is always the non-negative magnitude; Kind tells charges from refunds.
type Payment struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ReservationID uint64          `gorm:"not null;index" json:"reservation_id"`
	Kind          string          `gorm:"size:16;not null" json:"kind"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Method        string          `gorm:"size:32;not null;default:'CreditCard'" json:"method"`
	Status        string          `gorm:"size:16;not null;default:'Completed'" json:"status"`
	Reference     string          `gorm:"size:36;not null;uniqueIndex" json:"reference"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
}

// TableName pins the table name used by migrations and queries.
func (Payment) TableName() string { return "payments" }
