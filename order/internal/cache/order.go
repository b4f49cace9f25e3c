package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Alturino/storefront/internal/common/constants"
	"github.com/Alturino/storefront/order/pkg/response"
)

var ErrCacheMiss = errors.New("order cache miss")

// OrderCache holds the order history of a user, newest first.
type OrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOrderCache(client *redis.Client) *OrderCache {
	return &OrderCache{client: client, ttl: constants.OrdersTTL}
}

func Key(userId string) string {
	return fmt.Sprintf(constants.CacheKeyOrders, userId)
}

func (oc *OrderCache) Get(c context.Context, userId string) ([]response.Order, error) {
	data, err := oc.client.Get(c, Key(userId)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed getting orders from cache with error=%w", err)
	}

	orders := []response.Order{}
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("failed unmarshaling cached orders with error=%w", err)
	}
	return orders, nil
}

func (oc *OrderCache) Set(c context.Context, userId string, orders []response.Order) error {
	data, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("failed marshaling orders with error=%w", err)
	}
	jitter := time.Duration(rand.Int64N(int64(oc.ttl / 10)))
	if err := oc.client.Set(c, Key(userId), data, oc.ttl+jitter).Err(); err != nil {
		return fmt.Errorf("failed setting orders to cache with error=%w", err)
	}
	return nil
}

func (oc *OrderCache) Delete(c context.Context, userId string) error {
	if err := oc.client.Del(c, Key(userId)).Err(); err != nil {
		return fmt.Errorf("failed deleting orders from cache with error=%w", err)
	}
	return nil
}
