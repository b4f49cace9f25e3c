package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/storefront/internal/variant"
)

type Product struct {
	Id           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int32           `json:"quantity"`
	QuantityType string          `json:"quantityType"`
	Details      variant.Schema  `json:"details"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type Page struct {
	Products   []Product `json:"products"`
	Page       int32     `json:"page"`
	PerPage    int32     `json:"perPage"`
	TotalPages int32     `json:"totalPages"`
}
