package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/storefront/internal/variant"
)

type Order struct {
	Id          uuid.UUID         `json:"id"`
	SessionId   uuid.UUID         `json:"sessionId"`
	ProductId   uuid.UUID         `json:"productId"`
	ProductName string            `json:"productName"`
	Quantity    int32             `json:"quantity"`
	Price       decimal.Decimal   `json:"price"`
	Total       decimal.Decimal   `json:"total"`
	Selection   variant.Selection `json:"selection"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
}
