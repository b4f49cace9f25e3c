package request

import (
	"github.com/google/uuid"

	"github.com/Alturino/storefront/internal/variant"
)

type AddLine struct {
	ProductId uuid.UUID         `validate:"required"       json:"productId"`
	Selection variant.Selection `                          json:"selection"`
	Quantity  int32             `validate:"required,gte=1" json:"quantity"`
}

type UpdateLine struct {
	ProductId uuid.UUID         `validate:"required"       json:"productId"`
	Selection variant.Selection `                          json:"selection"`
	Quantity  int32             `validate:"required,gte=1" json:"quantity"`
}

type RemoveLine struct {
	ProductId uuid.UUID         `validate:"required" json:"productId"`
	Selection variant.Selection `                    json:"selection"`
}
