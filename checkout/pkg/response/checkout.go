package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/storefront/internal/pricing"
	"github.com/Alturino/storefront/internal/variant"
)

type CreatedSession struct {
	SessionId uuid.UUID     `json:"sessionId"`
	Url       string        `json:"url"`
	Quote     pricing.Quote `json:"quote"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

type Order struct {
	Id          uuid.UUID         `json:"id"`
	ProductId   uuid.UUID         `json:"productId"`
	ProductName string            `json:"productName"`
	Quantity    int32             `json:"quantity"`
	Price       decimal.Decimal   `json:"price"`
	Selection   variant.Selection `json:"selection"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Settlement is the outcome of reconciling a session. Replayed is set when
// the session was already terminal and nothing was executed.
type Settlement struct {
	SessionId       uuid.UUID        `json:"sessionId"`
	UserId          string           `json:"userId"`
	Status          string           `json:"status"`
	Reason          string           `json:"reason,omitempty"`
	ConfirmedAmount *decimal.Decimal `json:"confirmedAmount,omitempty"`
	Orders          []Order          `json:"orders"`
	Replayed        bool             `json:"replayed"`
}

type Session struct {
	Id          uuid.UUID       `json:"id"`
	UserId      string          `json:"userId"`
	Url         string          `json:"url"`
	QuotedTotal decimal.Decimal `json:"quotedTotal"`
	Status      string          `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	CreatedAt   time.Time       `json:"createdAt"`
	Orders      []Order         `json:"orders"`
}
