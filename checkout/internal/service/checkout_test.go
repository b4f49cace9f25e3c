package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/checkout/internal/gateway"
	"github.com/Alturino/storefront/checkout/pkg/request"
	"github.com/Alturino/storefront/checkout/pkg/response"
	"github.com/Alturino/storefront/internal/common/constants"
	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/testutil"
	"github.com/Alturino/storefront/internal/variant"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []gateway.CreateCheckout
	err   error
}

func (f *fakeGateway) CreateCheckout(c context.Context, param gateway.CreateCheckout) (gateway.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, param)
	if f.err != nil {
		return gateway.Checkout{}, f.err
	}
	return gateway.Checkout{
		ExternalId: "chk_" + param.SessionId.String(),
		Url:        "https://pay.example.com/" + param.SessionId.String(),
	}, nil
}

type fixture struct {
	svc     *CheckoutService
	pool    *pgxpool.Pool
	queries *repository.Queries
	gateway *fakeGateway
	redis   *redis.Client
	cache   *miniredis.Miniredis
	userId  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	c := testutil.Context()
	pool := testutil.Postgres(t, c, testutil.SeedPath(testutil.ProductsSeed))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fake := &fakeGateway{}
	cfg := config.Checkout{
		Shipping:   decimal.NewFromInt(5),
		TaxPercent: decimal.NewFromInt(5),
		SessionTTL: 5 * time.Minute,
	}
	return fixture{
		svc:     NewCheckoutService(pool, fake, client, cfg),
		pool:    pool,
		queries: repository.New(pool),
		gateway: fake,
		redis:   client,
		cache:   mr,
		userId:  uuid.NewString(),
	}
}

func (f fixture) addLine(t *testing.T, productId uuid.UUID, quantity int32) {
	t.Helper()
	_, err := f.queries.UpsertCartLine(testutil.Context(), repository.UpsertCartLineParams{
		UserID:       f.userId,
		ProductID:    productId,
		SelectionKey: variant.Selection{}.Key(),
		Selection:    variant.Selection{}.Bytes(),
		Quantity:     quantity,
	})
	require.NoError(t, err)
}

// scenarioCart fills the cart with ProductA x2 and ProductB x1, which quotes
// at (20 + 20 + 5) * 1.05 = 47.25.
func (f fixture) scenarioCart(t *testing.T) uuid.UUID {
	t.Helper()
	f.addLine(t, testutil.ProductA, 2)
	f.addLine(t, testutil.ProductB, 1)

	session, err := f.svc.CreateSession(testutil.Context(), f.userId)
	require.NoError(t, err)
	return session.SessionId
}

func (f fixture) stock(t *testing.T, productId uuid.UUID) int32 {
	t.Helper()
	product, err := f.queries.FindProductById(testutil.Context(), productId)
	require.NoError(t, err)
	return product.Quantity
}

func (f fixture) cartLines(t *testing.T) int {
	t.Helper()
	rows, err := f.queries.FindCartLinesByUserId(testutil.Context(), f.userId)
	require.NoError(t, err)
	return len(rows)
}

func (f fixture) orders(t *testing.T, sessionId uuid.UUID) int {
	t.Helper()
	rows, err := f.queries.FindOrdersBySessionId(testutil.Context(), sessionId)
	require.NoError(t, err)
	return len(rows)
}

func (f fixture) session(t *testing.T, sessionId uuid.UUID) repository.CheckoutSession {
	t.Helper()
	session, err := f.queries.FindCheckoutSessionById(testutil.Context(), sessionId)
	require.NoError(t, err)
	return session
}

func amount(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestCreateSession(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	f.addLine(t, testutil.ProductA, 2)
	f.addLine(t, testutil.ProductB, 1)

	created, err := f.svc.CreateSession(c, f.userId)
	require.NoError(t, err)

	assert.Equal(t, "47.25", created.Quote.Total.StringFixed(2))
	require.Len(t, f.gateway.calls, 1)
	assert.Equal(t, "47.25", f.gateway.calls[0].Total.StringFixed(2))
	assert.Equal(t, f.userId, f.gateway.calls[0].UserId)
	assert.Equal(t, created.SessionId, f.gateway.calls[0].SessionId)
	assert.Equal(t, "https://pay.example.com/"+created.SessionId.String(), created.Url)

	session := f.session(t, created.SessionId)
	assert.Equal(t, StatusPendingPayment, session.Status)
	assert.Equal(t, "47.25", repository.DecimalFromNumeric(session.QuotedTotal).StringFixed(2))
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), session.ExpiresAt.Time, 5*time.Second)

	assert.EqualValues(t, 5, f.stock(t, testutil.ProductA), "quoting must not touch stock")
	assert.Equal(t, 2, f.cartLines(t), "quoting must not touch the cart")
}

func TestCreateSessionFailure(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)

	_, err := f.svc.CreateSession(c, f.userId)
	assert.ErrorIs(t, err, commonErrors.ErrEmptyCart)
	assert.Empty(t, f.gateway.calls, "empty cart must not reach the gateway")

	f.addLine(t, testutil.ProductA, 1)
	f.gateway.err = errors.Join(commonErrors.ErrInternal, errors.New("gateway down"))
	_, err = f.svc.CreateSession(c, f.userId)
	assert.ErrorIs(t, err, commonErrors.ErrInternal)
}

func TestReconcileSettles(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)

	subscription := f.redis.Subscribe(c, constants.ChannelOrderSettled)
	defer subscription.Close()
	_, err := subscription.Receive(c)
	require.NoError(t, err)
	require.NoError(t, f.cache.Set(fmt.Sprintf(constants.CacheKeyCartLines, f.userId), "stale"))

	settlement, err := f.svc.Reconcile(c, request.Reconcile{
		SessionId:       sessionId,
		UserId:          f.userId,
		ConfirmedAmount: amount("47.25"),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSettled, settlement.Status)
	assert.False(t, settlement.Replayed)
	require.Len(t, settlement.Orders, 2)
	assert.Equal(t, testutil.ProductA, settlement.Orders[0].ProductId)
	assert.EqualValues(t, 2, settlement.Orders[0].Quantity)
	assert.Equal(t, "10", settlement.Orders[0].Price.String())
	assert.Equal(t, testutil.ProductB, settlement.Orders[1].ProductId)

	assert.EqualValues(t, 3, f.stock(t, testutil.ProductA))
	assert.EqualValues(t, 0, f.stock(t, testutil.ProductB), "unlimited stock is never decremented")
	assert.Equal(t, 0, f.cartLines(t))
	assert.Equal(t, 2, f.orders(t, sessionId))
	assert.Equal(t, StatusSettled, f.session(t, sessionId).Status)
	assert.False(t, f.cache.Exists(fmt.Sprintf(constants.CacheKeyCartLines, f.userId)), "settlement should invalidate the cart cache")
	version, err := f.cache.Get(fmt.Sprintf(constants.CacheKeyCartVersion, f.userId))
	require.NoError(t, err)
	assert.Equal(t, "1", version, "settlement should bump the cart version")

	select {
	case msg := <-subscription.Channel():
		assert.Contains(t, msg.Payload, sessionId.String())
	case <-time.After(2 * time.Second):
		t.Fatal("expected order settled event")
	}
}

func TestReconcileAcceptsOverpayment(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)

	settlement, err := f.svc.Reconcile(c, request.Reconcile{
		SessionId:       sessionId,
		UserId:          f.userId,
		ConfirmedAmount: amount("50.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, settlement.Status)
	require.NotNil(t, settlement.ConfirmedAmount)
	assert.Equal(t, "50", settlement.ConfirmedAmount.String())
}

func TestReconcileOutOfStock(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)

	_, err := f.pool.Exec(c, "UPDATE products SET quantity = 1 WHERE id = $1", testutil.ProductA)
	require.NoError(t, err)

	settlement, err := f.svc.Reconcile(c, request.Reconcile{
		SessionId:       sessionId,
		UserId:          f.userId,
		ConfirmedAmount: amount("47.25"),
	})
	assert.ErrorIs(t, err, commonErrors.ErrOutOfStock)
	assert.Equal(t, StatusRejected, settlement.Status)
	assert.Equal(t, ReasonOutOfStock, settlement.Reason)

	assert.EqualValues(t, 1, f.stock(t, testutil.ProductA))
	assert.Equal(t, 0, f.orders(t, sessionId))
	assert.Equal(t, 2, f.cartLines(t), "rejected settlement must leave the cart as it was")
	assert.Equal(t, StatusRejected, f.session(t, sessionId).Status)
}

func TestReconcilePaymentMismatch(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)

	settlement, err := f.svc.Reconcile(c, request.Reconcile{
		SessionId:       sessionId,
		UserId:          f.userId,
		ConfirmedAmount: amount("47.24"),
	})
	assert.ErrorIs(t, err, commonErrors.ErrPaymentMismatch)
	assert.Equal(t, ReasonPaymentMismatch, settlement.Reason)

	assert.EqualValues(t, 5, f.stock(t, testutil.ProductA))
	assert.Equal(t, 0, f.orders(t, sessionId))
	assert.Equal(t, 2, f.cartLines(t))
}

func TestReconcileRecomputesStaleQuote(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)

	// the cart grows after the quote: (30 + 20 + 5) * 1.05 = 57.75
	f.addLine(t, testutil.ProductA, 1)

	_, err := f.svc.Reconcile(c, request.Reconcile{
		SessionId:       sessionId,
		UserId:          f.userId,
		ConfirmedAmount: amount("47.25"),
	})
	assert.ErrorIs(t, err, commonErrors.ErrPaymentMismatch)
	assert.EqualValues(t, 5, f.stock(t, testutil.ProductA))
	assert.Equal(t, 0, f.orders(t, sessionId))
}

func reconciliations(status, reason, outcome string) float64 {
	return promtestutil.ToFloat64(metrics.Reconciliations.WithLabelValues(status, reason, outcome))
}

func TestReconcileExpiredSession(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)
	f.svc.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	executedBefore := reconciliations(StatusRejected, ReasonExpiredSession, metrics.OutcomeExecuted)
	replayedBefore := reconciliations(StatusRejected, ReasonExpiredSession, metrics.OutcomeReplayed)

	settlement, err := f.svc.Reconcile(c, request.Reconcile{
		SessionId:       sessionId,
		UserId:          f.userId,
		ConfirmedAmount: amount("47.25"),
	})
	assert.ErrorIs(t, err, commonErrors.ErrExpiredSession)
	assert.Equal(t, ReasonExpiredSession, settlement.Reason)
	assert.EqualValues(t, 5, f.stock(t, testutil.ProductA))
	assert.Equal(t, 2, f.cartLines(t))

	f.svc.now = time.Now
	replayed, err := f.svc.Reconcile(c, request.Reconcile{
		SessionId:       sessionId,
		UserId:          f.userId,
		ConfirmedAmount: amount("47.25"),
	})
	require.NoError(t, err)
	assert.True(t, replayed.Replayed, "a late confirmation is never honored")
	assert.Equal(t, StatusRejected, replayed.Status)
	assert.Equal(t, 0, f.orders(t, sessionId))

	assert.Equal(t, executedBefore+1, reconciliations(StatusRejected, ReasonExpiredSession, metrics.OutcomeExecuted))
	assert.Equal(t, replayedBefore+1, reconciliations(StatusRejected, ReasonExpiredSession, metrics.OutcomeReplayed))
}

func TestReconcileAtExpiry(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)
	expiresAt := f.session(t, sessionId).ExpiresAt.Time
	f.svc.now = func() time.Time { return expiresAt }

	settlement, err := f.svc.Reconcile(c, request.Reconcile{
		SessionId:       sessionId,
		UserId:          f.userId,
		ConfirmedAmount: amount("47.25"),
	})
	require.NoError(t, err, "a session is still open at its expiry instant")
	assert.Equal(t, StatusSettled, settlement.Status)

	swept, err := f.svc.SweepExpired(c)
	require.NoError(t, err)
	assert.Empty(t, swept)
}

func TestReconcileTwice(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)
	param := request.Reconcile{SessionId: sessionId, UserId: f.userId, ConfirmedAmount: amount("47.25")}
	executedBefore := reconciliations(StatusSettled, "", metrics.OutcomeExecuted)
	replayedBefore := reconciliations(StatusSettled, "", metrics.OutcomeReplayed)

	first, err := f.svc.Reconcile(c, param)
	require.NoError(t, err)
	second, err := f.svc.Reconcile(c, param)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Status, second.Status)
	require.Len(t, second.Orders, len(first.Orders))
	for i := range first.Orders {
		assert.Equal(t, first.Orders[i].Id, second.Orders[i].Id)
	}
	assert.EqualValues(t, 3, f.stock(t, testutil.ProductA))
	assert.Equal(t, 2, f.orders(t, sessionId))
	assert.Equal(t, executedBefore+1, reconciliations(StatusSettled, "", metrics.OutcomeExecuted))
	assert.Equal(t, replayedBefore+1, reconciliations(StatusSettled, "", metrics.OutcomeReplayed))
}

func TestReconcileKeepsLinesAddedDuringSettlement(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)

	// hold the stock row so the settlement parks after locking the cart
	blocker, err := f.pool.Begin(c)
	require.NoError(t, err)
	defer func() { _ = blocker.Rollback(c) }()
	_, err = blocker.Exec(c, "SELECT id FROM products WHERE id = $1 FOR UPDATE", testutil.ProductA)
	require.NoError(t, err)

	type result struct {
		settlement response.Settlement
		err        error
	}
	done := make(chan result, 1)
	go func() {
		settlement, err := f.svc.Reconcile(c, request.Reconcile{
			SessionId:       sessionId,
			UserId:          f.userId,
			ConfirmedAmount: amount("47.25"),
		})
		done <- result{settlement: settlement, err: err}
	}()

	require.Eventually(t, func() bool {
		var waiting int
		err := f.pool.QueryRow(
			c,
			"SELECT COUNT(*) FROM pg_stat_activity WHERE datname = current_database() AND wait_event_type = 'Lock'",
		).Scan(&waiting)
		return err == nil && waiting > 0
	}, 10*time.Second, 20*time.Millisecond, "settlement should wait on the stock row")

	selection := variant.Selection{"Size": {"M"}}
	_, err = f.queries.UpsertCartLine(c, repository.UpsertCartLineParams{
		UserID:       f.userId,
		ProductID:    testutil.Hoodie,
		SelectionKey: selection.Key(),
		Selection:    selection.Bytes(),
		Quantity:     1,
	})
	require.NoError(t, err, "a new line must not wait for the settlement")
	require.NoError(t, blocker.Rollback(c))

	var settled result
	select {
	case settled = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("settlement did not finish")
	}
	require.NoError(t, settled.err)
	assert.Equal(t, StatusSettled, settled.settlement.Status)
	assert.Len(t, settled.settlement.Orders, 2)
	assert.Equal(t, 2, f.orders(t, sessionId))
	assert.EqualValues(t, 3, f.stock(t, testutil.ProductA))
	assert.EqualValues(t, 100, f.stock(t, testutil.Hoodie), "the new line was not bought")

	rows, err := f.queries.FindCartLinesByUserId(c, f.userId)
	require.NoError(t, err)
	require.Len(t, rows, 1, "only the settled lines leave the cart")
	assert.Equal(t, testutil.Hoodie, rows[0].ProductID)
	assert.EqualValues(t, 1, rows[0].Quantity)
}

func TestReconcileConcurrently(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)
	param := request.Reconcile{SessionId: sessionId, UserId: f.userId, ConfirmedAmount: amount("47.25")}

	const deliveries = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		executed int
	)
	for range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			settlement, err := f.svc.Reconcile(c, param)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, StatusSettled, settlement.Status)
			assert.Len(t, settlement.Orders, 2)
			if !settlement.Replayed {
				mu.Lock()
				executed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, executed, "exactly one delivery executes the settlement")
	assert.EqualValues(t, 3, f.stock(t, testutil.ProductA))
	assert.Equal(t, 2, f.orders(t, sessionId))
}

func TestReconcileInvalidRequest(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)

	tests := []struct {
		name        string
		param       request.Reconcile
		expectedErr error
	}{
		{
			name:        "given unknown session should return not found",
			param:       request.Reconcile{SessionId: uuid.New(), UserId: f.userId, ConfirmedAmount: amount("47.25")},
			expectedErr: commonErrors.ErrNotFound,
		},
		{
			name:        "given other user should return validation error",
			param:       request.Reconcile{SessionId: sessionId, UserId: "someone-else", ConfirmedAmount: amount("47.25")},
			expectedErr: commonErrors.ErrValidation,
		},
		{
			name:        "given negative amount should return validation error",
			param:       request.Reconcile{SessionId: sessionId, UserId: f.userId, ConfirmedAmount: amount("-1")},
			expectedErr: commonErrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Reconcile(c, tt.param)
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, StatusPendingPayment, f.session(t, sessionId).Status)
		})
	}
}

func TestSweepExpired(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)

	swept, err := f.svc.SweepExpired(c)
	require.NoError(t, err)
	assert.Empty(t, swept, "fresh sessions are not swept")

	f.svc.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	swept, err = f.svc.SweepExpired(c)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{sessionId}, swept)

	session := f.session(t, sessionId)
	assert.Equal(t, StatusRejected, session.Status)
	assert.Equal(t, ReasonExpiredSession, session.Reason.String)
	assert.Equal(t, 2, f.cartLines(t))
}

func TestFindSession(t *testing.T) {
	c := testutil.Context()
	f := newFixture(t)
	sessionId := f.scenarioCart(t)

	session, err := f.svc.FindSession(c, sessionId, f.userId)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, session.Status)
	assert.Equal(t, "47.25", session.QuotedTotal.StringFixed(2))
	assert.Empty(t, session.Orders)

	_, err = f.svc.FindSession(c, sessionId, "someone-else")
	assert.ErrorIs(t, err, commonErrors.ErrNotFound)
}
