package request

import (
	"github.com/google/uuid"
)

type FindOrderById struct {
	UserId  string    `validate:"required"`
	OrderId uuid.UUID `validate:"required"`
}
