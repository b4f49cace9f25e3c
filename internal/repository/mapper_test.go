package repository

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNumericDecimalConversion(t *testing.T) {
	for _, input := range []string{"0", "10", "47.25", "15.50", "0.01", "123456.789"} {
		d := decimal.RequireFromString(input)
		actual := DecimalFromNumeric(NumericFromDecimal(d))
		assert.True(t, d.Equal(actual), "expected %s got %s", d, actual)
	}
}

func TestDecimalFromInvalidNumeric(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(DecimalFromNumeric(pgtype.Numeric{})))
}
