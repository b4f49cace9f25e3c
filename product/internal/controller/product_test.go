package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	commonErrors "github.com/Alturino/storefront/internal/common/errors"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		expectedPage int32
		expectedErr  error
	}{
		{name: "missing page should default to first", target: "/products", expectedPage: 1},
		{name: "numeric page should be used", target: "/products?page=3", expectedPage: 3},
		{name: "zero page should fail", target: "/products?page=0", expectedErr: commonErrors.ErrValidation},
		{name: "negative page should fail", target: "/products?page=-2", expectedErr: commonErrors.ErrValidation},
		{name: "text page should fail", target: "/products?page=two", expectedErr: commonErrors.ErrValidation},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, test.target, nil)
			page, err := ParsePage(r)
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.expectedPage, page)
		})
	}
}
