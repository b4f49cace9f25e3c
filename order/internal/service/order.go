package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/checkout/pkg/event"
	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/common/validate"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/pricing"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/variant"
	"github.com/Alturino/storefront/order/internal/cache"
	"github.com/Alturino/storefront/order/internal/common/otel"
	"github.com/Alturino/storefront/order/pkg/request"
	"github.com/Alturino/storefront/order/pkg/response"
)

type OrderService struct {
	queries *repository.Queries
	cache   *cache.OrderCache
}

func NewOrderService(queries *repository.Queries, cache *cache.OrderCache) *OrderService {
	return &OrderService{queries: queries, cache: cache}
}

func MapOrder(row repository.OrderWithProductRow) (response.Order, error) {
	selection, err := variant.ParseSelection(row.Selection)
	if err != nil {
		return response.Order{}, err
	}
	line := pricing.Line{Price: repository.DecimalFromNumeric(row.Price), Quantity: row.Quantity}
	return response.Order{
		Id:          row.ID,
		SessionId:   row.SessionID,
		ProductId:   row.ProductID,
		ProductName: row.ProductName,
		Quantity:    row.Quantity,
		Price:       line.Price,
		Total:       line.Total(),
		Selection:   selection,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt.Time,
	}, nil
}

// FindOrders lists the orders of a user, newest first.
func (svc *OrderService) FindOrders(c context.Context, userId string) ([]response.Order, error) {
	c, span := otel.Tracer.Start(c, "OrderService FindOrders")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService FindOrders").
		Str(log.KeyUserID, userId).
		Str(log.KeyCacheKey, cache.Key(userId)).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding orders in cache").Logger()
	logger.Trace().Msg("finding orders in cache")
	orders, err := svc.cache.Get(c, userId)
	if err == nil {
		metrics.CacheLookups.WithLabelValues("orders", "hit").Inc()
		logger.Trace().Msg("found orders in cache")
		return orders, nil
	}
	metrics.CacheLookups.WithLabelValues("orders", "miss").Inc()
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn().Err(err).Msg(err.Error())
	}

	logger = logger.With().Str(log.KeyProcess, "finding orders in database").Logger()
	logger.Trace().Msg("finding orders in database")
	rows, err := svc.queries.FindOrdersByUserId(c, userId)
	if err != nil {
		err = fmt.Errorf("failed finding orders with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Trace().Int("count", len(rows)).Msg("found orders in database")

	logger = logger.With().Str(log.KeyProcess, "mapping orders").Logger()
	orders = make([]response.Order, 0, len(rows))
	for _, row := range rows {
		order, err := MapOrder(row)
		if err != nil {
			err = fmt.Errorf("failed mapping order=%s with error=%w", row.ID, errors.Join(commonErrors.ErrInternal, err))
			commonErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return nil, err
		}
		orders = append(orders, order)
	}

	logger = logger.With().Str(log.KeyProcess, "inserting orders to cache").Logger()
	if err := svc.cache.Set(c, userId, orders); err != nil {
		logger.Warn().Err(err).Msg(err.Error())
	}

	return orders, nil
}

// FindOrderById returns an order owned by the user. Orders of other users
// are reported as not found.
func (svc *OrderService) FindOrderById(c context.Context, param request.FindOrderById) (response.Order, error) {
	c, span := otel.Tracer.Start(c, "OrderService FindOrderById")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService FindOrderById").
		Str(log.KeyUserID, param.UserId).
		Str(log.KeyOrderID, param.OrderId.String()).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "validating request").Logger()
	if err := validate.New().StructCtx(c, param); err != nil {
		err = fmt.Errorf("failed validating request with error=%w", errors.Join(commonErrors.ErrValidation, err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "finding order").Logger()
	logger.Trace().Msg("finding order")
	row, err := svc.queries.FindOrderById(c, repository.FindOrderByIdParams{
		ID:     param.OrderId,
		UserID: param.UserId,
	})
	if err != nil {
		err = fmt.Errorf("failed finding order with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger.Trace().Msg("found order")

	order, err := MapOrder(row)
	if err != nil {
		err = fmt.Errorf("failed mapping order with error=%w", errors.Join(commonErrors.ErrInternal, err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	return order, nil
}

// HandleOrderSettled drops the cached history of the user whose settlement
// just committed.
func (svc *OrderService) HandleOrderSettled(c context.Context, settled event.OrderSettled) error {
	c, span := otel.Tracer.Start(c, "OrderService HandleOrderSettled")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService HandleOrderSettled").
		Str(log.KeySessionID, settled.SessionId.String()).
		Str(log.KeyUserID, settled.UserId).
		Str(log.KeyCacheKey, cache.Key(settled.UserId)).
		Logger()

	if settled.UserId == "" {
		err := fmt.Errorf("order settled event without userId with error=%w", commonErrors.ErrValidation)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	logger = logger.With().Str(log.KeyProcess, "invalidating orders cache").Logger()
	logger.Trace().Msg("invalidating orders cache")
	if err := svc.cache.Delete(c, settled.UserId); err != nil {
		err = fmt.Errorf("failed invalidating orders cache with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Int("orderCount", len(settled.OrderIds)).Msg("invalidated orders cache")

	return nil
}
