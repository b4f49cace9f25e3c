package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Line struct {
	Price    decimal.Decimal
	Quantity int32
}

func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt32(l.Quantity))
}

type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Compute prices a cart. Tax is levied on goods and shipping together:
// total = (subtotal + shipping) * (1 + taxPercent / 100).
func Compute(lines []Line, shipping decimal.Decimal, taxPercent decimal.Decimal) Quote {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Total())
	}
	tax := subtotal.Add(shipping).Mul(taxPercent).Div(hundred)
	return Quote{
		Subtotal: subtotal.Round(2),
		Shipping: shipping.Round(2),
		Tax:      tax.Round(2),
		Total:    subtotal.Add(shipping).Add(tax).Round(2),
	}
}

// Cents converts an amount to the smallest currency unit, as payment
// gateways expect.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
