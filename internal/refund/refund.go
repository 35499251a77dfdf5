// Package refund decides how much of a reservation's price is returned on
// cancellation. It is pure: the caller supplies the clock.
package refund

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier names the refund bracket a cancellation fell into.
type Tier string

const (
	TierFull    Tier = "full"
	TierPartial Tier = "partial"
	TierNone    Tier = "none"
)

// FullRefundNotice is how far ahead of the start a cancellation must be
// made to get the whole price back.
const FullRefundNotice = 72 * time.Hour

var half = decimal.NewFromFloat(0.5)

// Decision is the outcome of Evaluate.
type Decision struct {
	Tier    Tier
	Amount  decimal.Decimal
	Message string
}

// Evaluate applies the cancellation schedule:
//   - at least three days before start: full refund
//   - later, up to and including start: half the price
//   - after start: nothing
func Evaluate(now, start time.Time, price decimal.Decimal) Decision {
	switch {
	case !now.After(start.Add(-FullRefundNotice)):
		return Decision{
			Tier:    TierFull,
			Amount:  price.Round(2),
			Message: "Cancellation confirmed with full refund",
		}
	case !now.After(start):
		return Decision{
			Tier:    TierPartial,
			Amount:  price.Mul(half).Round(2),
			Message: "Cancellation confirmed with partial refund",
		}
	default:
		return Decision{
			Tier:    TierNone,
			Amount:  decimal.Zero,
			Message: "Cancellation confirmed with no refund",
		}
	}
}
