package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Alturino/storefront/cart/pkg/response"
	"github.com/Alturino/storefront/internal/common/constants"
)

var (
	ErrCacheMiss    = errors.New("cart cache miss")
	ErrStaleVersion = errors.New("cart cache version moved")
)

// setIfVersion writes the cart only while the version key still holds the
// version the reader saw before loading from the database.
var setIfVersion = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == false then
	current = "0"
end
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// CartCache keeps the rendered cart of a user. It is a read-through copy for
// the UI only; settlement never reads it. Every invalidation bumps a per-user
// version so a reader that loaded before the bump cannot write back.
type CartCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartCache(client *redis.Client) *CartCache {
	return &CartCache{client: client, ttl: constants.CartLinesTTL}
}

func Key(userId string) string {
	return fmt.Sprintf(constants.CacheKeyCartLines, userId)
}

func VersionKey(userId string) string {
	return fmt.Sprintf(constants.CacheKeyCartVersion, userId)
}

// Version returns the current invalidation counter of a user, zero when none
// was recorded.
func (cc *CartCache) Version(c context.Context, userId string) (int64, error) {
	version, err := cc.client.Get(c, VersionKey(userId)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed getting cart version from cache with error=%w", err)
	}
	return version, nil
}

func (cc *CartCache) Get(c context.Context, userId string) (response.Cart, error) {
	data, err := cc.client.Get(c, Key(userId)).Bytes()
	if errors.Is(err, redis.Nil) {
		return response.Cart{}, ErrCacheMiss
	}
	if err != nil {
		return response.Cart{}, fmt.Errorf("failed getting cart from cache with error=%w", err)
	}

	cart := response.Cart{}
	if err := json.Unmarshal(data, &cart); err != nil {
		return response.Cart{}, fmt.Errorf("failed unmarshaling cached cart with error=%w", err)
	}
	return cart, nil
}

// Set stores the cart unless the version moved since it was read, in which
// case ErrStaleVersion is returned and nothing is written.
func (cc *CartCache) Set(c context.Context, cart response.Cart, version int64) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed marshaling cart with error=%w", err)
	}
	// jitter keeps entries written together from expiring together
	jitter := time.Duration(rand.Int64N(int64(cc.ttl / 10)))
	written, err := setIfVersion.Run(
		c,
		cc.client,
		[]string{VersionKey(cart.UserId), Key(cart.UserId)},
		strconv.FormatInt(version, 10),
		data,
		(cc.ttl + jitter).Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed setting cart to cache with error=%w", err)
	}
	if written == 0 {
		return ErrStaleVersion
	}
	return nil
}

// Delete drops the cached cart and bumps the version in one transaction.
func (cc *CartCache) Delete(c context.Context, userId string) error {
	_, err := cc.client.TxPipelined(c, func(pipe redis.Pipeliner) error {
		pipe.Incr(c, VersionKey(userId))
		pipe.Expire(c, VersionKey(userId), constants.CartVersionTTL)
		pipe.Del(c, Key(userId))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed deleting cart from cache with error=%w", err)
	}
	return nil
}
