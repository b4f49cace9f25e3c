package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const checkoutSessionColumns = `id, user_id, external_id, url, quoted_total, status, reason, confirmed_amount, expires_at, created_at, updated_at`

func scanCheckoutSession(row interface{ Scan(...interface{}) error }) (CheckoutSession, error) {
	var i CheckoutSession
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ExternalID,
		&i.Url,
		&i.QuotedTotal,
		&i.Status,
		&i.Reason,
		&i.ConfirmedAmount,
		&i.ExpiresAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const findCheckoutSessionById = `-- name: FindCheckoutSessionById :one
SELECT ` + checkoutSessionColumns + ` FROM checkout_sessions WHERE id = $1
`

func (q *Queries) FindCheckoutSessionById(ctx context.Context, id uuid.UUID) (CheckoutSession, error) {
	return scanCheckoutSession(q.db.QueryRow(ctx, findCheckoutSessionById, id))
}

const insertCheckoutSession = `-- name: InsertCheckoutSession :one
INSERT INTO checkout_sessions (id, user_id, external_id, url, quoted_total, status, expires_at)
VALUES ($1, $2, $3, $4, $5, 'pending_payment', $6)
RETURNING ` + checkoutSessionColumns + `
`

type InsertCheckoutSessionParams struct {
	ID          uuid.UUID          `json:"id"`
	UserID      string             `json:"user_id"`
	ExternalID  string             `json:"external_id"`
	Url         string             `json:"url"`
	QuotedTotal pgtype.Numeric     `json:"quoted_total"`
	ExpiresAt   pgtype.Timestamptz `json:"expires_at"`
}

func (q *Queries) InsertCheckoutSession(ctx context.Context, arg InsertCheckoutSessionParams) (CheckoutSession, error) {
	return scanCheckoutSession(q.db.QueryRow(ctx, insertCheckoutSession,
		arg.ID,
		arg.UserID,
		arg.ExternalID,
		arg.Url,
		arg.QuotedTotal,
		arg.ExpiresAt,
	))
}

const lockCheckoutSessionById = `-- name: LockCheckoutSessionById :one
SELECT ` + checkoutSessionColumns + ` FROM checkout_sessions WHERE id = $1 FOR UPDATE
`

func (q *Queries) LockCheckoutSessionById(ctx context.Context, id uuid.UUID) (CheckoutSession, error) {
	return scanCheckoutSession(q.db.QueryRow(ctx, lockCheckoutSessionById, id))
}

const rejectCheckoutSession = `-- name: RejectCheckoutSession :one
UPDATE checkout_sessions
SET status = 'rejected', reason = $2, confirmed_amount = $3, updated_at = NOW()
WHERE id = $1 AND status = 'pending_payment'
RETURNING ` + checkoutSessionColumns + `
`

type RejectCheckoutSessionParams struct {
	ID              uuid.UUID      `json:"id"`
	Reason          pgtype.Text    `json:"reason"`
	ConfirmedAmount pgtype.Numeric `json:"confirmed_amount"`
}

func (q *Queries) RejectCheckoutSession(ctx context.Context, arg RejectCheckoutSessionParams) (CheckoutSession, error) {
	return scanCheckoutSession(q.db.QueryRow(ctx, rejectCheckoutSession,
		arg.ID,
		arg.Reason,
		arg.ConfirmedAmount,
	))
}

const rejectExpiredCheckoutSessions = `-- name: RejectExpiredCheckoutSessions :many
UPDATE checkout_sessions
SET status = 'rejected', reason = 'expired_session', updated_at = NOW()
WHERE status = 'pending_payment' AND expires_at < $1
RETURNING ` + checkoutSessionColumns + `
`

func (q *Queries) RejectExpiredCheckoutSessions(ctx context.Context, expiresAt pgtype.Timestamptz) ([]CheckoutSession, error) {
	rows, err := q.db.Query(ctx, rejectExpiredCheckoutSessions, expiresAt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CheckoutSession
	for rows.Next() {
		i, err := scanCheckoutSession(rows)
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

const settleCheckoutSession = `-- name: SettleCheckoutSession :one
UPDATE checkout_sessions
SET status = 'settled', confirmed_amount = $2, updated_at = NOW()
WHERE id = $1 AND status = 'pending_payment'
RETURNING ` + checkoutSessionColumns + `
`

type SettleCheckoutSessionParams struct {
	ID              uuid.UUID      `json:"id"`
	ConfirmedAmount pgtype.Numeric `json:"confirmed_amount"`
}

func (q *Queries) SettleCheckoutSession(ctx context.Context, arg SettleCheckoutSessionParams) (CheckoutSession, error) {
	return scanCheckoutSession(q.db.QueryRow(ctx, settleCheckoutSession, arg.ID, arg.ConfirmedAmount))
}
