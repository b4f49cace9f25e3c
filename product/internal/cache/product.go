package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Alturino/storefront/internal/common/constants"
	"github.com/Alturino/storefront/product/pkg/response"
)

var ErrCacheMiss = errors.New("product cache miss")

// ProductCache serves product pages to the UI. Quotes and settlements read
// products from the database.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProductCache(client *redis.Client) *ProductCache {
	return &ProductCache{client: client, ttl: constants.ProductTTL}
}

func Key(productId uuid.UUID) string {
	return fmt.Sprintf(constants.CacheKeyProduct, productId.String())
}

func (pc *ProductCache) Get(c context.Context, productId uuid.UUID) (response.Product, error) {
	data, err := pc.client.Get(c, Key(productId)).Bytes()
	if errors.Is(err, redis.Nil) {
		return response.Product{}, ErrCacheMiss
	}
	if err != nil {
		return response.Product{}, fmt.Errorf("failed getting product from cache with error=%w", err)
	}

	product := response.Product{}
	if err := json.Unmarshal(data, &product); err != nil {
		return response.Product{}, fmt.Errorf("failed unmarshaling cached product with error=%w", err)
	}
	return product, nil
}

func (pc *ProductCache) Set(c context.Context, product response.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed marshaling product with error=%w", err)
	}
	jitter := time.Duration(rand.Int64N(int64(pc.ttl / 10)))
	if err := pc.client.Set(c, Key(product.Id), data, pc.ttl+jitter).Err(); err != nil {
		return fmt.Errorf("failed setting product to cache with error=%w", err)
	}
	return nil
}
