package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/common/otel"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/repository"
)

// Guard keeps product stock non-negative. Decrements are a single conditional
// UPDATE, so concurrent callers serialize on the product row without any
// read-then-write in application code.
type Guard struct {
	queries *repository.Queries
}

func NewGuard(db repository.DBTX) *Guard {
	return &Guard{queries: repository.New(db)}
}

// WithTx binds the guard to a transaction so decrements commit or roll back
// together with the caller's other writes.
func (g *Guard) WithTx(tx pgx.Tx) *Guard {
	return &Guard{queries: g.queries.WithTx(tx)}
}

// Decrement subtracts amount from the product's stock and returns what is
// left. Unlimited products succeed without touching the counter.
func (g *Guard) Decrement(c context.Context, productId uuid.UUID, amount int32) (int32, error) {
	c, span := otel.Tracer.Start(c, "Guard Decrement")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Guard Decrement").
		Str(log.KeyProductID, productId.String()).
		Int32(log.KeyQuantity, amount).
		Logger()

	if amount < 1 {
		err := fmt.Errorf("%w: decrement amount must be at least 1", commonErrors.ErrValidation)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return 0, err
	}

	logger = logger.With().Str(log.KeyProcess, "decrementing product quantity").Logger()
	logger.Trace().Msg("decrementing product quantity")
	row, err := g.queries.DecrementProductQuantity(
		c,
		repository.DecrementProductQuantityParams{ID: productId, Amount: amount},
	)
	if err == nil {
		metrics.StockDecrements.WithLabelValues(metrics.OutcomeSuccess).Inc()
		logger.Info().Int32(log.KeyRemainingQuantity, row.Quantity).Msg("decremented product quantity")
		return row.Quantity, nil
	}
	metrics.StockDecrements.WithLabelValues(metrics.OutcomeFailure).Inc()
	if !errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("failed decrementing product quantity with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return 0, err
	}

	logger = logger.With().Str(log.KeyProcess, "classifying failed decrement").Logger()
	_, err = g.queries.FindProductById(c, productId)
	if err != nil {
		err = fmt.Errorf("failed decrementing productId=%s with error=%w", productId, commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return 0, err
	}
	err = fmt.Errorf("failed decrementing productId=%s by %d with error=%w", productId, amount, commonErrors.ErrOutOfStock)
	commonErrors.HandleError(err, span)
	logger.Warn().Err(err).Msg(err.Error())
	return 0, err
}
