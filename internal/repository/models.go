package repository

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CartLine struct {
	ID           int64              `json:"id"`
	UserID       string             `json:"user_id"`
	ProductID    uuid.UUID          `json:"product_id"`
	SelectionKey string             `json:"selection_key"`
	Selection    []byte             `json:"selection"`
	Quantity     int32              `json:"quantity"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type CheckoutSession struct {
	ID              uuid.UUID          `json:"id"`
	UserID          string             `json:"user_id"`
	ExternalID      string             `json:"external_id"`
	Url             string             `json:"url"`
	QuotedTotal     pgtype.Numeric     `json:"quoted_total"`
	Status          string             `json:"status"`
	Reason          pgtype.Text        `json:"reason"`
	ConfirmedAmount pgtype.Numeric     `json:"confirmed_amount"`
	ExpiresAt       pgtype.Timestamptz `json:"expires_at"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}

type Order struct {
	ID        uuid.UUID          `json:"id"`
	SessionID uuid.UUID          `json:"session_id"`
	UserID    string             `json:"user_id"`
	ProductID uuid.UUID          `json:"product_id"`
	Quantity  int32              `json:"quantity"`
	Price     pgtype.Numeric     `json:"price"`
	Selection []byte             `json:"selection"`
	Status    string             `json:"status"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type Product struct {
	ID           uuid.UUID          `json:"id"`
	Name         string             `json:"name"`
	Description  pgtype.Text        `json:"description"`
	Price        pgtype.Numeric     `json:"price"`
	Quantity     int32              `json:"quantity"`
	QuantityType string             `json:"quantity_type"`
	Details      []byte             `json:"details"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}
