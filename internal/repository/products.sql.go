package repository

import (
	"context"

	"github.com/google/uuid"
)

const countProducts = `-- name: CountProducts :one
SELECT COUNT(*) FROM products
`

func (q *Queries) CountProducts(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countProducts)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const decrementProductQuantity = `-- name: DecrementProductQuantity :one
UPDATE products
SET quantity = CASE WHEN quantity_type = 'unlimited' THEN quantity ELSE quantity - $2::INTEGER END,
    updated_at = CASE WHEN quantity_type = 'unlimited' THEN updated_at ELSE NOW() END
WHERE id = $1 AND (quantity_type = 'unlimited' OR quantity >= $2::INTEGER)
RETURNING quantity, quantity_type
`

type DecrementProductQuantityParams struct {
	ID     uuid.UUID `json:"id"`
	Amount int32     `json:"amount"`
}

type DecrementProductQuantityRow struct {
	Quantity     int32  `json:"quantity"`
	QuantityType string `json:"quantity_type"`
}

func (q *Queries) DecrementProductQuantity(ctx context.Context, arg DecrementProductQuantityParams) (DecrementProductQuantityRow, error) {
	row := q.db.QueryRow(ctx, decrementProductQuantity, arg.ID, arg.Amount)
	var i DecrementProductQuantityRow
	err := row.Scan(&i.Quantity, &i.QuantityType)
	return i, err
}

const findProductById = `-- name: FindProductById :one
SELECT id, name, description, price, quantity, quantity_type, details, created_at, updated_at FROM products WHERE id = $1
`

func (q *Queries) FindProductById(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, findProductById, id)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Quantity,
		&i.QuantityType,
		&i.Details,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const findProducts = `-- name: FindProducts :many
SELECT id, name, description, price, quantity, quantity_type, details, created_at, updated_at FROM products ORDER BY created_at DESC, id LIMIT $1 OFFSET $2
`

type FindProductsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) FindProducts(ctx context.Context, arg FindProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, findProducts, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		var i Product
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Description,
			&i.Price,
			&i.Quantity,
			&i.QuantityType,
			&i.Details,
			&i.CreatedAt,
			&i.UpdatedAt,
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
