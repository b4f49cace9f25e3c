package service

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/checkout/pkg/event"
	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/testutil"
	"github.com/Alturino/storefront/internal/variant"
	"github.com/Alturino/storefront/order/internal/cache"
	"github.com/Alturino/storefront/order/pkg/request"
)

func newOrderService(t *testing.T) (*OrderService, *miniredis.Miniredis) {
	t.Helper()
	c := testutil.Context()
	pool := testutil.Postgres(
		t,
		c,
		testutil.SeedPath(testutil.ProductsSeed),
		testutil.SeedPath(testutil.SessionsSeed),
	)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewOrderService(repository.New(pool), cache.NewOrderCache(client)), mr
}

func TestFindOrders(t *testing.T) {
	c := testutil.Context()
	svc, mr := newOrderService(t)

	orders, err := svc.FindOrders(c, testutil.OrderUser)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, testutil.OrderHoodie, orders[0].Id)
	assert.Equal(t, "Hoodie", orders[0].ProductName)
	assert.Equal(t, variant.Selection{"Size": {"M"}}, orders[0].Selection)
	assert.Equal(t, testutil.OrderProductA, orders[1].Id)
	assert.True(t, decimal.NewFromInt(20).Equal(orders[1].Total))
	assert.True(t, mr.Exists(cache.Key(testutil.OrderUser)))

	cached, err := svc.FindOrders(c, testutil.OrderUser)
	require.NoError(t, err)
	assert.Len(t, cached, 2)

	empty, err := svc.FindOrders(c, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFindOrderById(t *testing.T) {
	c := testutil.Context()
	svc, _ := newOrderService(t)

	tests := []struct {
		name        string
		param       request.FindOrderById
		expectedErr error
	}{
		{
			name:  "own order should be found",
			param: request.FindOrderById{UserId: testutil.OrderUser, OrderId: testutil.OrderProductA},
		},
		{
			name:        "order of another user should not be found",
			param:       request.FindOrderById{UserId: testutil.OrderUser, OrderId: testutil.OtherUserOrder},
			expectedErr: commonErrors.ErrNotFound,
		},
		{
			name:        "unknown order should not be found",
			param:       request.FindOrderById{UserId: testutil.OrderUser, OrderId: uuid.New()},
			expectedErr: commonErrors.ErrNotFound,
		},
		{
			name:        "missing user should fail validation",
			param:       request.FindOrderById{OrderId: testutil.OrderProductA},
			expectedErr: commonErrors.ErrValidation,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			order, err := svc.FindOrderById(c, test.param)
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.param.OrderId, order.Id)
			assert.Equal(t, int32(2), order.Quantity)
			assert.True(t, decimal.NewFromInt(10).Equal(order.Price))
		})
	}
}

func TestHandleOrderSettled(t *testing.T) {
	c := testutil.Context()
	svc, mr := newOrderService(t)

	_, err := svc.FindOrders(c, testutil.OrderUser)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.Key(testutil.OrderUser)))

	err = svc.HandleOrderSettled(c, event.OrderSettled{
		SessionId: uuid.New(),
		UserId:    testutil.OrderUser,
		OrderIds:  []uuid.UUID{uuid.New()},
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.Key(testutil.OrderUser)))

	err = svc.HandleOrderSettled(c, event.OrderSettled{SessionId: uuid.New()})
	assert.ErrorIs(t, err, commonErrors.ErrValidation)
}
