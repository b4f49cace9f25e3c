package validate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type pricing struct {
	Shipping   decimal.Decimal `validate:"money"`
	TaxPercent decimal.Decimal `validate:"money"`
	SessionTTL time.Duration   `validate:"gt=0"`
}

func TestValidateMoney(t *testing.T) {
	tests := []struct {
		name    string
		input   pricing
		isValid bool
	}{
		{
			name: "given positive shipping and tax should be valid",
			input: pricing{
				Shipping:   decimal.NewFromInt(5),
				TaxPercent: decimal.NewFromInt(5),
				SessionTTL: 5 * time.Minute,
			},
			isValid: true,
		},
		{
			name: "given zero tax should be valid",
			input: pricing{
				Shipping:   decimal.RequireFromString("10.50"),
				TaxPercent: decimal.Zero,
				SessionTTL: time.Minute,
			},
			isValid: true,
		},
		{
			name: "given negative shipping should be invalid",
			input: pricing{
				Shipping:   decimal.NewFromInt(-1),
				TaxPercent: decimal.Zero,
				SessionTTL: time.Minute,
			},
			isValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Struct(tt.input)
			if tt.isValid {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}
