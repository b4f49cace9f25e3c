package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/storefront/internal/pricing"
	"github.com/Alturino/storefront/internal/variant"
)

type Line struct {
	ProductId    uuid.UUID         `json:"productId"`
	ProductName  string            `json:"productName"`
	Price        decimal.Decimal   `json:"price"`
	Stock        int32             `json:"stock"`
	QuantityType string            `json:"quantityType"`
	Quantity     int32             `json:"quantity"`
	Selection    variant.Selection `json:"selection"`
	SelectionKey string            `json:"selectionKey"`
	LineTotal    decimal.Decimal   `json:"lineTotal"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

type Cart struct {
	UserId string        `json:"userId"`
	Lines  []Line        `json:"lines"`
	Quote  pricing.Quote `json:"quote"`
}

type AddedLine struct {
	ProductId    uuid.UUID `json:"productId"`
	SelectionKey string    `json:"selectionKey"`
	Quantity     int32     `json:"quantity"`
}
