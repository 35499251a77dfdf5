package refund

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	price := decimal.RequireFromString("10.00")

	cases := []struct {
		name   string
		now    time.Time
		tier   Tier
		amount string
		msg    string
	}{
		{"four days ahead", start.Add(-96 * time.Hour), TierFull, "10.00", "Cancellation confirmed with full refund"},
		{"exactly three days ahead", start.Add(-FullRefundNotice), TierFull, "10.00", "Cancellation confirmed with full refund"},
		{"just inside three days", start.Add(-FullRefundNotice + time.Second), TierPartial, "5.00", "Cancellation confirmed with partial refund"},
		{"one day ahead", start.Add(-24 * time.Hour), TierPartial, "5.00", "Cancellation confirmed with partial refund"},
		{"at start", start, TierPartial, "5.00", "Cancellation confirmed with partial refund"},
		{"after start", start.Add(time.Hour), TierNone, "0.00", "Cancellation confirmed with no refund"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Evaluate(tc.now, start, price)
			assert.Equal(t, tc.tier, d.Tier)
			assert.Equal(t, tc.amount, d.Amount.StringFixed(2))
			assert.Equal(t, tc.msg, d.Message)
		})
	}
}

func TestEvaluate_PartialRounding(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	d := Evaluate(start.Add(-time.Hour), start, decimal.RequireFromString("5.01"))
	assert.Equal(t, TierPartial, d.Tier)
	assert.Equal(t, "2.51", d.Amount.StringFixed(2))
}
