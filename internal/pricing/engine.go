package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNegativeFactor is returned when a user carries a negative scaling factor.
var ErrNegativeFactor = errors.New("pricing: negative scaling factor")

// DiscountKind distinguishes the two supported discount flavours.
type DiscountKind string

const (
	// KindPercentage discounts a percentage of the scaled price.
	KindPercentage DiscountKind = "percentage"
	// KindFixed discounts a flat amount.
	KindFixed DiscountKind = "fixed"
)

// Discount is a single discount row as stored.
type Discount struct {
	Kind   DiscountKind
	Value  decimal.Decimal
	Active bool
}

// Applied is the outcome of applying one discount against the scaled price.
// Discounts are independent alternatives, each computed against the same
// scaled price rather than chained.
type Applied struct {
	Kind            DiscountKind    `json:"kind"`
	Value           decimal.Decimal `json:"value"`
	Amount          decimal.Decimal `json:"amount"`
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`
}

var hundred = decimal.NewFromInt(100)

// Scale divides the base price by the user's percentage factor, rounded to
// two decimal places. A zero factor means no scaling and returns the base
// unchanged. A negative factor is rejected rather than propagated.
func Scale(base, factor decimal.Decimal) (decimal.Decimal, error) {
	if factor.IsNegative() {
		return decimal.Decimal{}, ErrNegativeFactor
	}
	if factor.IsZero() {
		return base, nil
	}
	return base.Div(factor).Round(2), nil
}

// Apply computes the outcome of every active discount against the scaled
// price. Inactive discounts are skipped. The discount amount is clamped so
// the resulting price never drops below zero; amount and resulting price
// are both rounded to two decimal places.
func Apply(scaled decimal.Decimal, discounts []Discount) []Applied {
	out := make([]Applied, 0, len(discounts))
	for _, d := range discounts {
		if !d.Active {
			continue
		}
		var amount decimal.Decimal
		switch d.Kind {
		case KindPercentage:
			amount = scaled.Mul(d.Value.Div(hundred))
		case KindFixed:
			amount = d.Value
		default:
			continue
		}
		if amount.GreaterThan(scaled) {
			amount = scaled
		}
		discounted := scaled.Sub(amount).Round(2)
		out = append(out, Applied{
			Kind:            d.Kind,
			Value:           d.Value,
			Amount:          amount.Round(2),
			DiscountedPrice: discounted,
		})
	}
	return out
}
