package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderWithProductRow struct {
	ID          uuid.UUID          `json:"id"`
	SessionID   uuid.UUID          `json:"session_id"`
	UserID      string             `json:"user_id"`
	ProductID   uuid.UUID          `json:"product_id"`
	Quantity    int32              `json:"quantity"`
	Price       pgtype.Numeric     `json:"price"`
	Selection   []byte             `json:"selection"`
	Status      string             `json:"status"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	ProductName string             `json:"product_name"`
}

func scanOrderWithProduct(row interface{ Scan(...interface{}) error }) (OrderWithProductRow, error) {
	var i OrderWithProductRow
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.UserID,
		&i.ProductID,
		&i.Quantity,
		&i.Price,
		&i.Selection,
		&i.Status,
		&i.CreatedAt,
		&i.ProductName,
	)
	return i, err
}

func (q *Queries) queryOrdersWithProduct(ctx context.Context, query string, args ...interface{}) ([]OrderWithProductRow, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderWithProductRow
	for rows.Next() {
		i, err := scanOrderWithProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const findOrderById = `-- name: FindOrderById :one
SELECT o.id, o.session_id, o.user_id, o.product_id, o.quantity, o.price, o.selection, o.status, o.created_at, p.name AS product_name
FROM orders o JOIN products p ON p.id = o.product_id
WHERE o.id = $1 AND o.user_id = $2
`

type FindOrderByIdParams struct {
	ID     uuid.UUID `json:"id"`
	UserID string    `json:"user_id"`
}

func (q *Queries) FindOrderById(ctx context.Context, arg FindOrderByIdParams) (OrderWithProductRow, error) {
	return scanOrderWithProduct(q.db.QueryRow(ctx, findOrderById, arg.ID, arg.UserID))
}

const findOrdersBySessionId = `-- name: FindOrdersBySessionId :many
SELECT o.id, o.session_id, o.user_id, o.product_id, o.quantity, o.price, o.selection, o.status, o.created_at, p.name AS product_name
FROM orders o JOIN products p ON p.id = o.product_id
WHERE o.session_id = $1
ORDER BY o.created_at, o.id
`

func (q *Queries) FindOrdersBySessionId(ctx context.Context, sessionID uuid.UUID) ([]OrderWithProductRow, error) {
	return q.queryOrdersWithProduct(ctx, findOrdersBySessionId, sessionID)
}

const findOrdersByUserId = `-- name: FindOrdersByUserId :many
SELECT o.id, o.session_id, o.user_id, o.product_id, o.quantity, o.price, o.selection, o.status, o.created_at, p.name AS product_name
FROM orders o JOIN products p ON p.id = o.product_id
WHERE o.user_id = $1
ORDER BY o.created_at DESC, o.id
`

func (q *Queries) FindOrdersByUserId(ctx context.Context, userID string) ([]OrderWithProductRow, error) {
	return q.queryOrdersWithProduct(ctx, findOrdersByUserId, userID)
}

const insertOrder = `-- name: InsertOrder :one
INSERT INTO orders (id, session_id, user_id, product_id, quantity, price, selection)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, session_id, user_id, product_id, quantity, price, selection, status, created_at
`

type InsertOrderParams struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"session_id"`
	UserID    string         `json:"user_id"`
	ProductID uuid.UUID      `json:"product_id"`
	Quantity  int32          `json:"quantity"`
	Price     pgtype.Numeric `json:"price"`
	Selection []byte         `json:"selection"`
}

func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, insertOrder,
		arg.ID,
		arg.SessionID,
		arg.UserID,
		arg.ProductID,
		arg.Quantity,
		arg.Price,
		arg.Selection,
	)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.UserID,
		&i.ProductID,
		&i.Quantity,
		&i.Price,
		&i.Selection,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}
