package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/cart/pkg/response"
	"github.com/Alturino/storefront/internal/pricing"
	"github.com/Alturino/storefront/internal/variant"
)

func setupCache(t *testing.T) (*CartCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCartCache(client), mr
}

func TestCartCache(t *testing.T) {
	cache, mr := setupCache(t)
	c := context.Background()
	userId := "user_2abc"

	_, err := cache.Get(c, userId)
	assert.ErrorIs(t, err, ErrCacheMiss)

	cart := response.Cart{
		UserId: userId,
		Lines: []response.Line{
			{
				ProductId:    uuid.New(),
				ProductName:  "Hoodie",
				Price:        decimal.RequireFromString("15.50"),
				Quantity:     2,
				Selection:    variant.Selection{"Size": {"M"}},
				SelectionKey: `[["Size",["M"]]]`,
				LineTotal:    decimal.NewFromInt(31),
			},
		},
		Quote: pricing.Quote{Total: decimal.NewFromInt(41)},
	}
	require.NoError(t, cache.Set(c, cart, 0))
	assert.True(t, mr.Exists(Key(userId)))
	assert.Greater(t, mr.TTL(Key(userId)), 59*time.Second)

	actual, err := cache.Get(c, userId)
	require.NoError(t, err)
	assert.Equal(t, userId, actual.UserId)
	require.Len(t, actual.Lines, 1)
	assert.Equal(t, variant.Selection{"Size": {"M"}}, actual.Lines[0].Selection)
	assert.True(t, cart.Lines[0].Price.Equal(actual.Lines[0].Price))
	assert.True(t, cart.Quote.Total.Equal(actual.Quote.Total))

	require.NoError(t, cache.Delete(c, userId))
	_, err = cache.Get(c, userId)
	assert.ErrorIs(t, err, ErrCacheMiss)
	version, err := cache.Version(c, userId)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestCartCacheSetAfterInvalidation(t *testing.T) {
	cache, mr := setupCache(t)
	c := context.Background()
	userId := "user_2abc"
	staleCart := response.Cart{UserId: userId, Lines: []response.Line{{ProductName: "Hoodie", Quantity: 1}}}

	// a reader misses and remembers the version before loading the database
	_, err := cache.Get(c, userId)
	require.ErrorIs(t, err, ErrCacheMiss)
	readVersion, err := cache.Version(c, userId)
	require.NoError(t, err)

	// a writer changes the cart and invalidates before the reader writes back
	require.NoError(t, cache.Delete(c, userId))

	err = cache.Set(c, staleCart, readVersion)
	assert.ErrorIs(t, err, ErrStaleVersion)
	assert.False(t, mr.Exists(Key(userId)))
	_, err = cache.Get(c, userId)
	assert.ErrorIs(t, err, ErrCacheMiss)

	// the next reader sees the bumped version and may fill the cache
	freshVersion, err := cache.Version(c, userId)
	require.NoError(t, err)
	assert.Equal(t, readVersion+1, freshVersion)
	require.NoError(t, cache.Set(c, response.Cart{UserId: userId}, freshVersion))
	actual, err := cache.Get(c, userId)
	require.NoError(t, err)
	assert.Empty(t, actual.Lines)
}

func TestCartCacheVersionSurvivesCartExpiry(t *testing.T) {
	cache, mr := setupCache(t)
	c := context.Background()
	userId := "user_2abc"

	require.NoError(t, cache.Delete(c, userId))
	require.NoError(t, cache.Delete(c, userId))
	mr.FastForward(2 * time.Minute)

	version, err := cache.Version(c, userId)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Greater(t, mr.TTL(VersionKey(userId)), time.Hour)
}

func TestCartCacheExpires(t *testing.T) {
	cache, mr := setupCache(t)
	c := context.Background()

	require.NoError(t, cache.Set(c, response.Cart{UserId: "user_2abc"}, 0))
	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(c, "user_2abc")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCartCacheInvalidJSON(t *testing.T) {
	cache, mr := setupCache(t)
	require.NoError(t, mr.Set(Key("user_2abc"), "{not json"))

	_, err := cache.Get(context.Background(), "user_2abc")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
