package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/checkout/internal/gateway"
	"github.com/Alturino/storefront/checkout/internal/service"
	checkoutResponse "github.com/Alturino/storefront/checkout/pkg/response"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/testutil"
	"github.com/Alturino/storefront/internal/variant"
)

func TestHandleWebhookWithoutReconciling(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedCode int
	}{
		{
			name:         "given malformed body should be bad request",
			body:         `{"meta":`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "given other event should be acknowledged",
			body:         `{"meta":{"event_name":"subscription_created"},"data":{"attributes":{"status":"active"}}}`,
			expectedCode: http.StatusOK,
		},
		{
			name:         "given unpaid order should be acknowledged",
			body:         `{"meta":{"event_name":"order_created"},"data":{"attributes":{"status":"pending","total":4725}}}`,
			expectedCode: http.StatusOK,
		},
		{
			name: "given paid order without session should be bad request",
			body: `{"meta":{"event_name":"order_created","custom_data":{"user_id":"user-1"}},` +
				`"data":{"attributes":{"status":"paid","total":4725}}}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "given paid order with malformed session should be bad request",
			body: `{"meta":{"event_name":"order_created","custom_data":{"user_id":"user-1","session_id":"abc"}},` +
				`"data":{"attributes":{"status":"paid","total":4725}}}`,
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := mux.NewRouter()
			AttachCheckoutController(api, api, nil)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(tt.body))
			req = req.WithContext(testutil.Context())
			rec := httptest.NewRecorder()
			api.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
		})
	}
}

type stubGateway struct{}

func (stubGateway) CreateCheckout(c context.Context, param gateway.CreateCheckout) (gateway.Checkout, error) {
	return gateway.Checkout{
		ExternalId: "chk_" + param.SessionId.String(),
		Url:        "https://pay.example.com/" + param.SessionId.String(),
	}, nil
}

type webhookResponse struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Data       struct {
		Settlement checkoutResponse.Settlement `json:"settlement"`
	} `json:"data"`
}

func paidWebhook(userId string, sessionId uuid.UUID, cents int64) string {
	return fmt.Sprintf(
		`{"meta":{"event_name":"order_created","custom_data":{"user_id":%q,"session_id":%q}},`+
			`"data":{"attributes":{"status":"paid","total":%d}}}`,
		userId,
		sessionId.String(),
		cents,
	)
}

func postWebhook(t *testing.T, router *mux.Router, body string) (int, webhookResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req = req.WithContext(testutil.Context())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	resp := webhookResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestHandleWebhookReconciles(t *testing.T) {
	c := testutil.Context()
	pool := testutil.Postgres(t, c, testutil.SeedPath(testutil.ProductsSeed))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	queries := repository.New(pool)
	svc := service.NewCheckoutService(pool, stubGateway{}, client, config.Checkout{
		Shipping:   decimal.NewFromInt(5),
		TaxPercent: decimal.NewFromInt(5),
		SessionTTL: 5 * time.Minute,
	})
	router := mux.NewRouter()
	AttachCheckoutController(router, router, svc)

	tests := []struct {
		name             string
		cents            int64
		setup            func(t *testing.T, userId string, sessionId uuid.UUID)
		expectedCode     int
		expectedStatus   string
		expectedReason   string
		expectedReplayed bool
		expectedSession  string
		expectedStock    int32
		expectedLines    int
	}{
		{
			name:            "given paid in full should settle",
			cents:           4725,
			expectedCode:    http.StatusOK,
			expectedStatus:  service.StatusSettled,
			expectedSession: service.StatusSettled,
			expectedStock:   3,
		},
		{
			name:            "given underpayment should reject as payment mismatch",
			cents:           4724,
			expectedCode:    http.StatusPaymentRequired,
			expectedStatus:  service.StatusRejected,
			expectedReason:  service.ReasonPaymentMismatch,
			expectedSession: service.StatusRejected,
			expectedStock:   5,
			expectedLines:   2,
		},
		{
			name:  "given sold out product should reject as out of stock",
			cents: 4725,
			setup: func(t *testing.T, userId string, sessionId uuid.UUID) {
				_, err := pool.Exec(c, "UPDATE products SET quantity = 1 WHERE id = $1", testutil.ProductA)
				require.NoError(t, err)
			},
			expectedCode:    http.StatusConflict,
			expectedStatus:  service.StatusRejected,
			expectedReason:  service.ReasonOutOfStock,
			expectedSession: service.StatusRejected,
			expectedStock:   1,
			expectedLines:   2,
		},
		{
			name:  "given redelivered payment should replay the settlement",
			cents: 4725,
			setup: func(t *testing.T, userId string, sessionId uuid.UUID) {
				code, resp := postWebhook(t, router, paidWebhook(userId, sessionId, 4725))
				require.Equal(t, http.StatusOK, code)
				require.False(t, resp.Data.Settlement.Replayed)
			},
			expectedCode:     http.StatusOK,
			expectedStatus:   service.StatusSettled,
			expectedReplayed: true,
			expectedSession:  service.StatusSettled,
			expectedStock:    3,
		},
		{
			name:  "given failing order insert should keep session pending",
			cents: 4725,
			setup: func(t *testing.T, userId string, sessionId uuid.UUID) {
				_, err := pool.Exec(c, `CREATE OR REPLACE FUNCTION refuse_orders() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'orders unavailable';
END;
$$ LANGUAGE plpgsql`)
				require.NoError(t, err)
				_, err = pool.Exec(c, "CREATE TRIGGER refuse_orders BEFORE INSERT ON orders FOR EACH ROW EXECUTE FUNCTION refuse_orders()")
				require.NoError(t, err)
				t.Cleanup(func() {
					_, err := pool.Exec(c, "DROP TRIGGER IF EXISTS refuse_orders ON orders")
					assert.NoError(t, err)
				})
			},
			expectedCode:    http.StatusInternalServerError,
			expectedSession: service.StatusPendingPayment,
			expectedStock:   5,
			expectedLines:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pool.Exec(c, "UPDATE products SET quantity = 5 WHERE id = $1", testutil.ProductA)
			require.NoError(t, err)

			userId := uuid.NewString()
			for _, line := range []struct {
				productId uuid.UUID
				quantity  int32
			}{{testutil.ProductA, 2}, {testutil.ProductB, 1}} {
				_, err := queries.UpsertCartLine(c, repository.UpsertCartLineParams{
					UserID:       userId,
					ProductID:    line.productId,
					SelectionKey: variant.Selection{}.Key(),
					Selection:    variant.Selection{}.Bytes(),
					Quantity:     line.quantity,
				})
				require.NoError(t, err)
			}
			created, err := svc.CreateSession(c, userId)
			require.NoError(t, err)
			if tt.setup != nil {
				tt.setup(t, userId, created.SessionId)
			}

			code, resp := postWebhook(t, router, paidWebhook(userId, created.SessionId, tt.cents))

			assert.Equal(t, tt.expectedCode, code)
			assert.Equal(t, tt.expectedCode, resp.StatusCode)
			settlement := resp.Data.Settlement
			assert.Equal(t, tt.expectedStatus, settlement.Status)
			assert.Equal(t, tt.expectedReason, settlement.Reason)
			assert.Equal(t, tt.expectedReplayed, settlement.Replayed)
			if tt.expectedStatus == service.StatusSettled {
				require.NotNil(t, settlement.ConfirmedAmount)
				assert.Equal(t, "47.25", settlement.ConfirmedAmount.StringFixed(2))
				assert.Len(t, settlement.Orders, 2)
			}

			session, err := queries.FindCheckoutSessionById(c, created.SessionId)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedSession, session.Status)

			product, err := queries.FindProductById(c, testutil.ProductA)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStock, product.Quantity)

			lines, err := queries.FindCartLinesByUserId(c, userId)
			require.NoError(t, err)
			assert.Len(t, lines, tt.expectedLines)
		})
	}
}
