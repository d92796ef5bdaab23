package pricing_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andika-pr/backend-otoparts/internal/pricing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestScale(t *testing.T) {
	t.Run("zero factor returns base unchanged", func(t *testing.T) {
		got, err := pricing.Scale(dec("123.45"), decimal.Zero)
		require.NoError(t, err)
		require.True(t, got.Equal(dec("123.45")))
	})

	t.Run("divides and rounds to two places", func(t *testing.T) {
		got, err := pricing.Scale(dec("100"), dec("2"))
		require.NoError(t, err)
		require.True(t, got.Equal(dec("50")))

		got, err = pricing.Scale(dec("100"), dec("3"))
		require.NoError(t, err)
		require.Equal(t, "33.33", got.StringFixed(2))
	})

	t.Run("negative factor fails fast", func(t *testing.T) {
		_, err := pricing.Scale(dec("100"), dec("-1"))
		require.ErrorIs(t, err, pricing.ErrNegativeFactor)
	})
}

func TestApply(t *testing.T) {
	t.Run("percentage and fixed against the same scaled price", func(t *testing.T) {
		scaled := dec("50")
		applied := pricing.Apply(scaled, []pricing.Discount{
			{Kind: pricing.KindPercentage, Value: dec("10"), Active: true},
			{Kind: pricing.KindFixed, Value: dec("8"), Active: true},
		})
		require.Len(t, applied, 2)

		require.Equal(t, pricing.KindPercentage, applied[0].Kind)
		require.Equal(t, "5.00", applied[0].Amount.StringFixed(2))
		require.Equal(t, "45.00", applied[0].DiscountedPrice.StringFixed(2))

		// Fixed discount is not stacked on top of the percentage one.
		require.Equal(t, pricing.KindFixed, applied[1].Kind)
		require.Equal(t, "8.00", applied[1].Amount.StringFixed(2))
		require.Equal(t, "42.00", applied[1].DiscountedPrice.StringFixed(2))
	})

	t.Run("amount clamped to scaled price", func(t *testing.T) {
		applied := pricing.Apply(dec("20"), []pricing.Discount{
			{Kind: pricing.KindFixed, Value: dec("35"), Active: true},
		})
		require.Len(t, applied, 1)
		require.Equal(t, "20.00", applied[0].Amount.StringFixed(2))
		require.Equal(t, "0.00", applied[0].DiscountedPrice.StringFixed(2))
	})

	t.Run("inactive discounts skipped", func(t *testing.T) {
		applied := pricing.Apply(dec("100"), []pricing.Discount{
			{Kind: pricing.KindPercentage, Value: dec("50"), Active: false},
		})
		require.Empty(t, applied)
	})

	t.Run("spec example", func(t *testing.T) {
		scaled, err := pricing.Scale(dec("100"), dec("2"))
		require.NoError(t, err)
		require.Equal(t, "50.00", scaled.StringFixed(2))

		applied := pricing.Apply(scaled, []pricing.Discount{
			{Kind: pricing.KindPercentage, Value: dec("10"), Active: true},
		})
		require.Len(t, applied, 1)
		require.Equal(t, "5.00", applied[0].Amount.StringFixed(2))
		require.Equal(t, "45.00", applied[0].DiscountedPrice.StringFixed(2))
	})
}

func TestDisplayPrice(t *testing.T) {
	t.Run("renders number for approved viewers", func(t *testing.T) {
		data, err := json.Marshal(pricing.DisplayPrice{Value: dec("45.5")})
		require.NoError(t, err)
		require.Equal(t, "45.50", string(data))
	})

	t.Run("renders redaction marker regardless of value", func(t *testing.T) {
		data, err := json.Marshal(pricing.DisplayPrice{Value: dec("45.5"), Redacted: true})
		require.NoError(t, err)
		require.Equal(t, `"*"`, string(data))
	})

	t.Run("round trips", func(t *testing.T) {
		var p pricing.DisplayPrice
		require.NoError(t, json.Unmarshal([]byte(`"*"`), &p))
		require.True(t, p.Redacted)

		require.NoError(t, json.Unmarshal([]byte(`45.50`), &p))
		require.False(t, p.Redacted)
		require.Equal(t, "45.50", p.Value.StringFixed(2))
	})
}
