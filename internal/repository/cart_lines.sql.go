package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const deleteCartLine = `-- name: DeleteCartLine :execrows
DELETE FROM cart_lines WHERE user_id = $1 AND product_id = $2 AND selection_key = $3
`

type DeleteCartLineParams struct {
	UserID       string    `json:"user_id"`
	ProductID    uuid.UUID `json:"product_id"`
	SelectionKey string    `json:"selection_key"`
}

func (q *Queries) DeleteCartLine(ctx context.Context, arg DeleteCartLineParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteCartLine, arg.UserID, arg.ProductID, arg.SelectionKey)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteCartLinesByIds = `-- name: DeleteCartLinesByIds :execrows
DELETE FROM cart_lines WHERE id = ANY($1::BIGINT[])
`

func (q *Queries) DeleteCartLinesByIds(ctx context.Context, ids []int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteCartLinesByIds, ids)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const findCartLinesByUserId = `-- name: FindCartLinesByUserId :many
SELECT cl.id, cl.user_id, cl.product_id, cl.selection_key, cl.selection, cl.quantity,
       cl.created_at, cl.updated_at,
       p.name AS product_name, p.price AS product_price, p.quantity AS product_quantity,
       p.quantity_type AS product_quantity_type
FROM cart_lines cl
JOIN products p ON p.id = cl.product_id
WHERE cl.user_id = $1
ORDER BY cl.id
`

type FindCartLinesByUserIdRow struct {
	ID                  int64              `json:"id"`
	UserID              string             `json:"user_id"`
	ProductID           uuid.UUID          `json:"product_id"`
	SelectionKey        string             `json:"selection_key"`
	Selection           []byte             `json:"selection"`
	Quantity            int32              `json:"quantity"`
	CreatedAt           pgtype.Timestamptz `json:"created_at"`
	UpdatedAt           pgtype.Timestamptz `json:"updated_at"`
	ProductName         string             `json:"product_name"`
	ProductPrice        pgtype.Numeric     `json:"product_price"`
	ProductQuantity     int32              `json:"product_quantity"`
	ProductQuantityType string             `json:"product_quantity_type"`
}

func (q *Queries) FindCartLinesByUserId(ctx context.Context, userID string) ([]FindCartLinesByUserIdRow, error) {
	rows, err := q.db.Query(ctx, findCartLinesByUserId, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FindCartLinesByUserIdRow
	for rows.Next() {
		var i FindCartLinesByUserIdRow
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.ProductID,
			&i.SelectionKey,
			&i.Selection,
			&i.Quantity,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.ProductName,
			&i.ProductPrice,
			&i.ProductQuantity,
			&i.ProductQuantityType,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const lockCartLinesByUserId = `-- name: LockCartLinesByUserId :many
SELECT cl.id, cl.user_id, cl.product_id, cl.selection_key, cl.selection, cl.quantity,
       cl.created_at, cl.updated_at,
       p.name AS product_name, p.price AS product_price, p.quantity AS product_quantity,
       p.quantity_type AS product_quantity_type
FROM cart_lines cl
JOIN products p ON p.id = cl.product_id
WHERE cl.user_id = $1
ORDER BY cl.id
FOR UPDATE OF cl
`

type LockCartLinesByUserIdRow struct {
	ID                  int64              `json:"id"`
	UserID              string             `json:"user_id"`
	ProductID           uuid.UUID          `json:"product_id"`
	SelectionKey        string             `json:"selection_key"`
	Selection           []byte             `json:"selection"`
	Quantity            int32              `json:"quantity"`
	CreatedAt           pgtype.Timestamptz `json:"created_at"`
	UpdatedAt           pgtype.Timestamptz `json:"updated_at"`
	ProductName         string             `json:"product_name"`
	ProductPrice        pgtype.Numeric     `json:"product_price"`
	ProductQuantity     int32              `json:"product_quantity"`
	ProductQuantityType string             `json:"product_quantity_type"`
}

func (q *Queries) LockCartLinesByUserId(ctx context.Context, userID string) ([]LockCartLinesByUserIdRow, error) {
	rows, err := q.db.Query(ctx, lockCartLinesByUserId, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LockCartLinesByUserIdRow
	for rows.Next() {
		var i LockCartLinesByUserIdRow
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.ProductID,
			&i.SelectionKey,
			&i.Selection,
			&i.Quantity,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.ProductName,
			&i.ProductPrice,
			&i.ProductQuantity,
			&i.ProductQuantityType,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateCartLineQuantity = `-- name: UpdateCartLineQuantity :one
UPDATE cart_lines SET quantity = $4, updated_at = NOW()
WHERE user_id = $1 AND product_id = $2 AND selection_key = $3
RETURNING quantity
`

type UpdateCartLineQuantityParams struct {
	UserID       string    `json:"user_id"`
	ProductID    uuid.UUID `json:"product_id"`
	SelectionKey string    `json:"selection_key"`
	Quantity     int32     `json:"quantity"`
}

func (q *Queries) UpdateCartLineQuantity(ctx context.Context, arg UpdateCartLineQuantityParams) (int32, error) {
	row := q.db.QueryRow(ctx, updateCartLineQuantity,
		arg.UserID,
		arg.ProductID,
		arg.SelectionKey,
		arg.Quantity,
	)
	var quantity int32
	err := row.Scan(&quantity)
	return quantity, err
}

const upsertCartLine = `-- name: UpsertCartLine :one
INSERT INTO cart_lines (user_id, product_id, selection_key, selection, quantity)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, product_id, selection_key)
DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = NOW()
RETURNING quantity
`

type UpsertCartLineParams struct {
	UserID       string    `json:"user_id"`
	ProductID    uuid.UUID `json:"product_id"`
	SelectionKey string    `json:"selection_key"`
	Selection    []byte    `json:"selection"`
	Quantity     int32     `json:"quantity"`
}

func (q *Queries) UpsertCartLine(ctx context.Context, arg UpsertCartLineParams) (int32, error) {
	row := q.db.QueryRow(ctx, upsertCartLine,
		arg.UserID,
		arg.ProductID,
		arg.SelectionKey,
		arg.Selection,
		arg.Quantity,
	)
	var quantity int32
	err := row.Scan(&quantity)
	return quantity, err
}
