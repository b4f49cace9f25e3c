package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/cart/internal/cache"
	"github.com/Alturino/storefront/cart/internal/common/otel"
	"github.com/Alturino/storefront/cart/pkg/request"
	"github.com/Alturino/storefront/cart/pkg/response"
	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/pricing"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/variant"
)

const (
	operationAdd    = "add"
	operationUpdate = "update"
	operationRemove = "remove"
)

// CartService keeps per-user cart lines keyed by product and canonical
// variant selection.
type CartService struct {
	queries *repository.Queries
	cache   *cache.CartCache
	cfg     config.Checkout
}

func NewCartService(
	queries *repository.Queries,
	cache *cache.CartCache,
	cfg config.Checkout,
) *CartService {
	return &CartService{queries: queries, cache: cache, cfg: cfg}
}

func recordMutation(operation string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	metrics.CartMutations.WithLabelValues(operation, outcome).Inc()
}

// AddLine validates the selection against the product's variant schema and
// adds quantity to the matching line in one upsert, creating it when absent.
// It returns the line's resulting quantity.
func (svc *CartService) AddLine(
	c context.Context,
	userId string,
	param request.AddLine,
) (res response.AddedLine, err error) {
	c, span := otel.Tracer.Start(c, "CartService AddLine")
	defer span.End()
	defer func() { recordMutation(operationAdd, err) }()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService AddLine").
		Str(log.KeyUserID, userId).
		Str(log.KeyProductID, param.ProductId.String()).
		Int32(log.KeyQuantity, param.Quantity).
		Logger()

	if param.Quantity < 1 {
		err = fmt.Errorf("%w: quantity must be at least 1", commonErrors.ErrValidation)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.AddedLine{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "finding product").Logger()
	logger.Trace().Msg("finding product")
	product, err := svc.queries.FindProductById(c, param.ProductId)
	if err != nil {
		err = fmt.Errorf("failed finding product with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.AddedLine{}, err
	}
	logger.Trace().Msg("found product")

	logger = logger.With().Str(log.KeyProcess, "validating selection").Logger()
	logger.Trace().Msg("validating selection")
	schema, err := variant.ParseSchema(product.Details)
	if err != nil {
		err = fmt.Errorf("failed parsing variant schema with error=%w", errors.Join(commonErrors.ErrInternal, err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.AddedLine{}, err
	}
	selection, err := variant.Validate(schema, param.Selection)
	if err != nil {
		err = fmt.Errorf("failed validating selection with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.AddedLine{}, err
	}
	selectionKey := selection.Key()
	logger = logger.With().Str(log.KeySelectionKey, selectionKey).Logger()
	logger.Trace().Msg("validated selection")

	if !product.IsUnlimited() && param.Quantity > product.Quantity {
		err = fmt.Errorf(
			"failed adding %d of productId=%s with %d in stock with error=%w",
			param.Quantity,
			product.ID,
			product.Quantity,
			commonErrors.ErrInsufficientStock,
		)
		commonErrors.HandleError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		return response.AddedLine{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "upserting cart line").Logger()
	logger.Trace().Msg("upserting cart line")
	quantity, err := svc.queries.UpsertCartLine(c, repository.UpsertCartLineParams{
		UserID:       userId,
		ProductID:    product.ID,
		SelectionKey: selectionKey,
		Selection:    selection.Bytes(),
		Quantity:     param.Quantity,
	})
	if err != nil {
		err = fmt.Errorf("failed upserting cart line with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.AddedLine{}, err
	}
	logger.Info().Int32("lineQuantity", quantity).Msg("upserted cart line")

	svc.invalidate(c, userId)

	return response.AddedLine{
		ProductId:    product.ID,
		SelectionKey: selectionKey,
		Quantity:     quantity,
	}, nil
}

// UpdateLine sets the absolute quantity of an existing line.
func (svc *CartService) UpdateLine(
	c context.Context,
	userId string,
	param request.UpdateLine,
) (quantity int32, err error) {
	c, span := otel.Tracer.Start(c, "CartService UpdateLine")
	defer span.End()
	defer func() { recordMutation(operationUpdate, err) }()

	selectionKey := param.Selection.Key()
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService UpdateLine").
		Str(log.KeyUserID, userId).
		Str(log.KeyProductID, param.ProductId.String()).
		Str(log.KeySelectionKey, selectionKey).
		Int32(log.KeyQuantity, param.Quantity).
		Logger()

	if param.Quantity < 1 {
		err = fmt.Errorf("%w: quantity must be at least 1, remove the line instead", commonErrors.ErrValidation)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return 0, err
	}

	logger = logger.With().Str(log.KeyProcess, "updating cart line").Logger()
	logger.Trace().Msg("updating cart line")
	quantity, err = svc.queries.UpdateCartLineQuantity(c, repository.UpdateCartLineQuantityParams{
		UserID:       userId,
		ProductID:    param.ProductId,
		SelectionKey: selectionKey,
		Quantity:     param.Quantity,
	})
	if err != nil {
		err = fmt.Errorf("failed updating cart line with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return 0, err
	}
	logger.Info().Msg("updated cart line")

	svc.invalidate(c, userId)

	return quantity, nil
}

// RemoveLine deletes the line matching the selection. Removing an absent line
// is not an error.
func (svc *CartService) RemoveLine(
	c context.Context,
	userId string,
	param request.RemoveLine,
) (err error) {
	c, span := otel.Tracer.Start(c, "CartService RemoveLine")
	defer span.End()
	defer func() { recordMutation(operationRemove, err) }()

	selectionKey := param.Selection.Key()
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemoveLine").
		Str(log.KeyUserID, userId).
		Str(log.KeyProductID, param.ProductId.String()).
		Str(log.KeySelectionKey, selectionKey).
		Str(log.KeyProcess, "deleting cart line").
		Logger()

	logger.Trace().Msg("deleting cart line")
	deleted, err := svc.queries.DeleteCartLine(c, repository.DeleteCartLineParams{
		UserID:       userId,
		ProductID:    param.ProductId,
		SelectionKey: selectionKey,
	})
	if err != nil {
		err = fmt.Errorf("failed deleting cart line with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Int64("deleted", deleted).Msg("deleted cart line")

	if deleted > 0 {
		svc.invalidate(c, userId)
	}
	return nil
}

// ListLines returns the user's lines in insertion order joined with the
// current product data, together with the quote checkout would charge.
func (svc *CartService) ListLines(c context.Context, userId string) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService ListLines")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ListLines").
		Str(log.KeyUserID, userId).
		Str(log.KeyCacheKey, cache.Key(userId)).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart in cache").Logger()
	logger.Trace().Msg("finding cart in cache")
	cart, err := svc.cache.Get(c, userId)
	if err == nil {
		metrics.CacheLookups.WithLabelValues("cart", "hit").Inc()
		logger.Trace().Msg("found cart in cache")
		return cart, nil
	}
	metrics.CacheLookups.WithLabelValues("cart", "miss").Inc()
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn().Err(err).Msg(err.Error())
	}

	// must be read before the database
	logger = logger.With().Str(log.KeyProcess, "finding cart version in cache").Logger()
	version, versionErr := svc.cache.Version(c, userId)
	if versionErr != nil {
		logger.Warn().Err(versionErr).Msg(versionErr.Error())
	}

	logger = logger.With().Str(log.KeyProcess, "finding cart lines in database").Logger()
	logger.Trace().Msg("finding cart lines in database")
	rows, err := svc.queries.FindCartLinesByUserId(c, userId)
	if err != nil {
		err = fmt.Errorf("failed finding cart lines with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Trace().Int("count", len(rows)).Msg("found cart lines in database")

	logger = logger.With().Str(log.KeyProcess, "mapping cart lines").Logger()
	cart, err = MapCart(userId, rows, svc.cfg)
	if err != nil {
		err = fmt.Errorf("failed mapping cart lines with error=%w", errors.Join(commonErrors.ErrInternal, err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	if versionErr != nil {
		return cart, nil
	}
	logger = logger.With().Str(log.KeyProcess, "inserting cart to cache").Int64("version", version).Logger()
	err = svc.cache.Set(c, cart, version)
	if errors.Is(err, cache.ErrStaleVersion) {
		logger.Trace().Msg("cart changed while loading, skipped caching")
	} else if err != nil {
		logger.Warn().Err(err).Msg(err.Error())
	}

	return cart, nil
}

func (svc *CartService) invalidate(c context.Context, userId string) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService invalidate").
		Str(log.KeyCacheKey, cache.Key(userId)).
		Logger()
	if err := svc.cache.Delete(c, userId); err != nil {
		logger.Warn().Err(err).Msg(err.Error())
	}
}

// MapCart builds the cart view from joined rows.
func MapCart(
	userId string,
	rows []repository.FindCartLinesByUserIdRow,
	cfg config.Checkout,
) (response.Cart, error) {
	lines := make([]response.Line, 0, len(rows))
	priced := make([]pricing.Line, 0, len(rows))
	for _, row := range rows {
		selection, err := variant.ParseSelection(row.Selection)
		if err != nil {
			return response.Cart{}, err
		}
		line := pricing.Line{
			Price:    repository.DecimalFromNumeric(row.ProductPrice),
			Quantity: row.Quantity,
		}
		priced = append(priced, line)
		lines = append(lines, response.Line{
			ProductId:    row.ProductID,
			ProductName:  row.ProductName,
			Price:        line.Price,
			Stock:        row.ProductQuantity,
			QuantityType: row.ProductQuantityType,
			Quantity:     row.Quantity,
			Selection:    selection,
			SelectionKey: row.SelectionKey,
			LineTotal:    line.Total(),
			CreatedAt:    row.CreatedAt.Time,
			UpdatedAt:    row.UpdatedAt.Time,
		})
	}
	return response.Cart{
		UserId: userId,
		Lines:  lines,
		Quote:  pricing.Compute(priced, cfg.Shipping, cfg.TaxPercent),
	}, nil
}

