package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name       string
		lines      []Line
		shipping   decimal.Decimal
		taxPercent decimal.Decimal
		expected   Quote
	}{
		{
			name: "given limited and unlimited lines should add shipping and tax",
			lines: []Line{
				{Price: decimal.NewFromInt(10), Quantity: 2},
				{Price: decimal.NewFromInt(20), Quantity: 1},
			},
			shipping:   decimal.NewFromInt(5),
			taxPercent: decimal.NewFromInt(5),
			expected: Quote{
				Subtotal: decimal.NewFromInt(40),
				Shipping: decimal.NewFromInt(5),
				Tax:      decimal.RequireFromString("2.25"),
				Total:    decimal.RequireFromString("47.25"),
			},
		},
		{
			name:       "given empty cart should charge shipping only",
			shipping:   decimal.NewFromInt(10),
			taxPercent: decimal.Zero,
			expected: Quote{
				Subtotal: decimal.Zero,
				Shipping: decimal.NewFromInt(10),
				Tax:      decimal.Zero,
				Total:    decimal.NewFromInt(10),
			},
		},
		{
			name:       "given fractional tax should round half up to cents",
			lines:      []Line{{Price: decimal.RequireFromString("15.50"), Quantity: 3}},
			shipping:   decimal.RequireFromString("4.99"),
			taxPercent: decimal.RequireFromString("7.5"),
			expected: Quote{
				Subtotal: decimal.RequireFromString("46.50"),
				Shipping: decimal.RequireFromString("4.99"),
				Tax:      decimal.RequireFromString("3.86"),
				Total:    decimal.RequireFromString("55.35"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := Compute(tt.lines, tt.shipping, tt.taxPercent)
			assert.True(t, tt.expected.Subtotal.Equal(actual.Subtotal), "subtotal %s", actual.Subtotal)
			assert.True(t, tt.expected.Shipping.Equal(actual.Shipping), "shipping %s", actual.Shipping)
			assert.True(t, tt.expected.Tax.Equal(actual.Tax), "tax %s", actual.Tax)
			assert.True(t, tt.expected.Total.Equal(actual.Total), "total %s", actual.Total)
		})
	}
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(4725), Cents(decimal.RequireFromString("47.25")))
	assert.Equal(t, int64(1000), Cents(decimal.NewFromInt(10)))
	assert.True(t, decimal.RequireFromString("47.25").Equal(FromCents(4725)))
}
