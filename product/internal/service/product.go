package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/variant"
	"github.com/Alturino/storefront/product/internal/cache"
	"github.com/Alturino/storefront/product/internal/common/otel"
	"github.com/Alturino/storefront/product/pkg/response"
)

const PerPage int32 = 12

type ProductService struct {
	queries *repository.Queries
	cache   *cache.ProductCache
}

func NewProductService(queries *repository.Queries, cache *cache.ProductCache) *ProductService {
	return &ProductService{queries: queries, cache: cache}
}

func MapProduct(product repository.Product) (response.Product, error) {
	details, err := variant.ParseSchema(product.Details)
	if err != nil {
		return response.Product{}, err
	}
	return response.Product{
		Id:           product.ID,
		Name:         product.Name,
		Description:  product.Description.String,
		Price:        repository.DecimalFromNumeric(product.Price),
		Quantity:     product.Quantity,
		QuantityType: product.QuantityType,
		Details:      details,
		CreatedAt:    product.CreatedAt.Time,
		UpdatedAt:    product.UpdatedAt.Time,
	}, nil
}

// FetchProduct always reads the product row, bypassing the cache.
func (svc *ProductService) FetchProduct(c context.Context, productId uuid.UUID) (response.Product, error) {
	c, span := otel.Tracer.Start(c, "ProductService FetchProduct")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductService FetchProduct").
		Str(log.KeyProductID, productId.String()).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding product in database").Logger()
	logger.Trace().Msg("finding product in database")
	row, err := svc.queries.FindProductById(c, productId)
	if err != nil {
		err = fmt.Errorf("failed finding product with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger.Trace().Msg("found product in database")

	logger = logger.With().Str(log.KeyProcess, "mapping product").Logger()
	product, err := MapProduct(row)
	if err != nil {
		err = fmt.Errorf("failed mapping product with error=%w", errors.Join(commonErrors.ErrInternal, err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}

	return product, nil
}

func (svc *ProductService) FindProductById(c context.Context, productId uuid.UUID) (response.Product, error) {
	c, span := otel.Tracer.Start(c, "ProductService FindProductById")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductService FindProductById").
		Str(log.KeyProductID, productId.String()).
		Str(log.KeyCacheKey, cache.Key(productId)).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding product in cache").Logger()
	logger.Trace().Msg("finding product in cache")
	product, err := svc.cache.Get(c, productId)
	if err == nil {
		metrics.CacheLookups.WithLabelValues("product", "hit").Inc()
		logger.Trace().Msg("found product in cache")
		return product, nil
	}
	metrics.CacheLookups.WithLabelValues("product", "miss").Inc()
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn().Err(err).Msg(err.Error())
	}

	c = logger.WithContext(c)
	product, err = svc.FetchProduct(c, productId)
	if err != nil {
		err = fmt.Errorf("failed fetching product with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "inserting product to cache").Logger()
	if err := svc.cache.Set(c, product); err != nil {
		logger.Warn().Err(err).Msg(err.Error())
	}

	return product, nil
}

// FindProducts returns one page of the catalog, newest first. Pages start
// at 1.
func (svc *ProductService) FindProducts(c context.Context, page int32) (response.Page, error) {
	c, span := otel.Tracer.Start(c, "ProductService FindProducts")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductService FindProducts").
		Int32(log.KeyPage, page).
		Logger()

	if page < 1 {
		err := fmt.Errorf("invalid page=%d with error=%w", page, commonErrors.ErrValidation)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Page{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "counting products").Logger()
	logger.Trace().Msg("counting products")
	count, err := svc.queries.CountProducts(c)
	if err != nil {
		err = fmt.Errorf("failed counting products with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Page{}, err
	}
	logger.Trace().Int64("count", count).Msg("counted products")

	logger = logger.With().Str(log.KeyProcess, "finding products").Logger()
	logger.Trace().Msg("finding products")
	rows, err := svc.queries.FindProducts(c, repository.FindProductsParams{
		Limit:  PerPage,
		Offset: (page - 1) * PerPage,
	})
	if err != nil {
		err = fmt.Errorf("failed finding products with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Page{}, err
	}
	logger.Trace().Int("count", len(rows)).Msg("found products")

	logger = logger.With().Str(log.KeyProcess, "mapping products").Logger()
	products := make([]response.Product, 0, len(rows))
	for _, row := range rows {
		product, err := MapProduct(row)
		if err != nil {
			err = fmt.Errorf("failed mapping product=%s with error=%w", row.ID, errors.Join(commonErrors.ErrInternal, err))
			commonErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Page{}, err
		}
		products = append(products, product)
	}

	return response.Page{
		Products:   products,
		Page:       page,
		PerPage:    PerPage,
		TotalPages: int32((count + int64(PerPage) - 1) / int64(PerPage)),
	}, nil
}
