package inventory

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/testutil"
)

func TestDecrement(t *testing.T) {
	c := testutil.Context()
	pool := testutil.Postgres(t, c, testutil.SeedPath(testutil.ProductsSeed))
	queries := repository.New(pool)
	guard := NewGuard(pool)

	tests := []struct {
		name              string
		productId         uuid.UUID
		amount            int32
		expectedRemaining int32
		expectedErr       error
	}{
		{
			name:              "given enough stock should decrement",
			productId:         testutil.ProductA,
			amount:            2,
			expectedRemaining: 3,
		},
		{
			name:        "given amount above stock should return out of stock and keep stock",
			productId:   testutil.ProductA,
			amount:      4,
			expectedErr: commonErrors.ErrOutOfStock,
		},
		{
			name:              "given exact stock should drain to zero",
			productId:         testutil.ProductA,
			amount:            3,
			expectedRemaining: 0,
		},
		{
			name:              "given unlimited product should succeed without touching counter",
			productId:         testutil.ProductB,
			amount:            1000,
			expectedRemaining: 0,
		},
		{
			name:        "given unknown product should return not found",
			productId:   uuid.New(),
			amount:      1,
			expectedErr: commonErrors.ErrNotFound,
		},
		{
			name:        "given zero amount should return validation error",
			productId:   testutil.ProductA,
			amount:      0,
			expectedErr: commonErrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := queries.FindProductById(c, tt.productId)

			actual, err := guard.Decrement(c, tt.productId, tt.amount)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				after, _ := queries.FindProductById(c, tt.productId)
				assert.Equal(t, before.Quantity, after.Quantity, "failed decrement must not change stock")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedRemaining, actual)
		})
	}
}

func TestDecrementConcurrently(t *testing.T) {
	c := testutil.Context()
	pool := testutil.Postgres(t, c, testutil.SeedPath(testutil.ProductsSeed))
	guard := NewGuard(pool)

	const workers = 20
	var (
		wg         sync.WaitGroup
		succeeded  atomic.Int32
		outOfStock atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := guard.Decrement(c, testutil.ProductA, 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, commonErrors.ErrOutOfStock):
				outOfStock.Add(1)
			}
		}()
	}
	wg.Wait()

	product, err := repository.New(pool).FindProductById(c, testutil.ProductA)
	require.NoError(t, err)
	assert.EqualValues(t, 5, succeeded.Load(), "only the seeded stock can be sold")
	assert.EqualValues(t, workers-5, outOfStock.Load())
	assert.EqualValues(t, 0, product.Quantity)
}

func TestDecrementRollsBackWithTransaction(t *testing.T) {
	c := testutil.Context()
	pool := testutil.Postgres(t, c, testutil.SeedPath(testutil.ProductsSeed))
	guard := NewGuard(pool)

	tx, err := pool.Begin(c)
	require.NoError(t, err)
	remaining, err := guard.WithTx(tx).Decrement(c, testutil.ProductA, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 0, remaining)
	require.NoError(t, tx.Rollback(c))

	product, err := repository.New(pool).FindProductById(c, testutil.ProductA)
	require.NoError(t, err)
	assert.EqualValues(t, 5, product.Quantity)
}
