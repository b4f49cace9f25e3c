package event

import "github.com/google/uuid"

// OrderSettled is published on constants.ChannelOrderSettled once a settlement
// transaction has committed.
type OrderSettled struct {
	SessionId uuid.UUID   `json:"sessionId"`
	UserId    string      `json:"userId"`
	OrderIds  []uuid.UUID `json:"orderIds"`
}
