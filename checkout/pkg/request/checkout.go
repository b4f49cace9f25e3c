package request

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/pricing"
)

const (
	EventOrderCreated = "order_created"
	StatusPaid        = "paid"
)

type Reconcile struct {
	SessionId       uuid.UUID       `json:"sessionId"`
	UserId          string          `json:"userId"`
	ConfirmedAmount decimal.Decimal `json:"confirmedAmount"`
}

type WebhookCustomData struct {
	UserId    string `json:"user_id"    validate:"required"`
	SessionId string `json:"session_id" validate:"required,uuid"`
}

type WebhookMeta struct {
	EventName  string            `json:"event_name"  validate:"required"`
	CustomData WebhookCustomData `json:"custom_data"`
}

type WebhookAttributes struct {
	Total  int64  `json:"total"  validate:"gte=0"`
	Status string `json:"status"`
}

type WebhookData struct {
	Attributes WebhookAttributes `json:"attributes"`
}

// Webhook is the payment gateway's order notification. Amounts are in cents.
type Webhook struct {
	Meta WebhookMeta `json:"meta"`
	Data WebhookData `json:"data"`
}

// Settles reports whether the notification confirms a payment.
func (w Webhook) Settles() bool {
	return w.Meta.EventName == EventOrderCreated && w.Data.Attributes.Status == StatusPaid
}

func (w Webhook) Reconcile() (Reconcile, error) {
	sessionId, err := uuid.Parse(w.Meta.CustomData.SessionId)
	if err != nil {
		return Reconcile{}, fmt.Errorf("%w: invalid session_id", commonErrors.ErrValidation)
	}
	return Reconcile{
		SessionId:       sessionId,
		UserId:          w.Meta.CustomData.UserId,
		ConfirmedAmount: pricing.FromCents(w.Data.Attributes.Total),
	}, nil
}
