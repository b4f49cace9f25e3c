package service

import (
	"errors"

	commonErrors "github.com/Alturino/storefront/internal/common/errors"
)

// Checkout session states. Open only exists in memory until the payment
// gateway has accepted the quote; rows are written as PendingPayment.
const (
	StatusOpen           = "open"
	StatusPendingPayment = "pending_payment"
	StatusSettled        = "settled"
	StatusRejected       = "rejected"
)

// Rejection reasons stored on the session.
const (
	ReasonExpiredSession  = "expired_session"
	ReasonPaymentMismatch = "payment_mismatch"
	ReasonOutOfStock      = "out_of_stock"
	ReasonEmptyCart       = "empty_cart"
)

func IsTerminal(status string) bool {
	return status == StatusSettled || status == StatusRejected
}

// rejectionReason maps a failed settlement to the reason persisted on the
// session. Errors without a reason leave the session pending.
func rejectionReason(err error) (string, bool) {
	switch {
	case errors.Is(err, commonErrors.ErrExpiredSession):
		return ReasonExpiredSession, true
	case errors.Is(err, commonErrors.ErrPaymentMismatch):
		return ReasonPaymentMismatch, true
	case errors.Is(err, commonErrors.ErrOutOfStock):
		return ReasonOutOfStock, true
	case errors.Is(err, commonErrors.ErrEmptyCart):
		return ReasonEmptyCart, true
	}
	return "", false
}
