// Package gateway opens hosted checkouts on the payment provider.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Alturino/storefront/checkout/internal/common/otel"
	"github.com/Alturino/storefront/internal/common/constants"
	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/pricing"
)

const (
	contentTypeJsonApi = "application/vnd.api+json"
	checkoutsPath      = "/v1/checkouts"
)

// errRejected marks a 4xx answer: the provider is up but refused this request.
var errRejected = errors.New("payment gateway rejected the request")

type CreateCheckout struct {
	SessionId   uuid.UUID
	UserId      string
	Total       decimal.Decimal
	ExpiresAt   time.Time
	Description string
}

type Checkout struct {
	ExternalId string
	Url        string
}

type relationship struct {
	Data struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

func newRelationship(kind string, id string) relationship {
	r := relationship{}
	r.Data.Type = kind
	r.Data.ID = id
	return r
}

type checkoutRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			CustomPrice    int64 `json:"custom_price"`
			ProductOptions struct {
				Name        string `json:"name"`
				Description string `json:"description"`
				RedirectURL string `json:"redirect_url"`
			} `json:"product_options"`
			CheckoutData struct {
				Custom map[string]string `json:"custom"`
			} `json:"checkout_data"`
			ExpiresAt time.Time `json:"expires_at"`
			TestMode  bool      `json:"test_mode"`
		} `json:"attributes"`
		Relationships struct {
			Store   relationship `json:"store"`
			Variant relationship `json:"variant"`
		} `json:"relationships"`
	} `json:"data"`
}

type checkoutResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			URL string `json:"url"`
		} `json:"attributes"`
	} `json:"data"`
}

// LemonSqueezy creates checkouts on a Lemon Squeezy compatible API. Calls go
// through a circuit breaker so an unavailable provider fails fast.
type LemonSqueezy struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[Checkout]
	cfg     config.Payment
}

func NewLemonSqueezy(cfg config.Payment) *LemonSqueezy {
	breaker := gobreaker.NewCircuitBreaker[Checkout](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// only transport errors and 5xx say the provider is unhealthy
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRejected)
		},
	})
	return &LemonSqueezy{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		breaker: breaker,
		cfg:     cfg,
	}
}

func (g *LemonSqueezy) CreateCheckout(c context.Context, param CreateCheckout) (Checkout, error) {
	c, span := otel.Tracer.Start(c, "LemonSqueezy CreateCheckout")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "LemonSqueezy CreateCheckout").
		Str(log.KeySessionID, param.SessionId.String()).
		Str(log.KeyUserID, param.UserId).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "creating checkout").Logger()
	logger.Trace().Msg("creating checkout")
	checkout, err := g.breaker.Execute(func() (Checkout, error) {
		return g.createCheckout(c, param)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = errors.Join(commonErrors.ErrInternal, err)
	}
	if err != nil {
		err = fmt.Errorf("failed creating checkout with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Checkout{}, err
	}
	logger.Info().Str(log.KeyExternalID, checkout.ExternalId).Msg("created checkout")

	return checkout, nil
}

func (g *LemonSqueezy) createCheckout(c context.Context, param CreateCheckout) (Checkout, error) {
	body := checkoutRequest{}
	body.Data.Type = "checkouts"
	body.Data.Attributes.CustomPrice = pricing.Cents(param.Total)
	body.Data.Attributes.ProductOptions.Name = constants.AppStorefront
	body.Data.Attributes.ProductOptions.Description = param.Description
	body.Data.Attributes.ProductOptions.RedirectURL = g.cfg.RedirectURL
	body.Data.Attributes.CheckoutData.Custom = map[string]string{
		"user_id":    param.UserId,
		"session_id": param.SessionId.String(),
	}
	body.Data.Attributes.ExpiresAt = param.ExpiresAt.UTC()
	body.Data.Attributes.TestMode = g.cfg.Sandbox
	body.Data.Relationships.Store = newRelationship("stores", g.cfg.StoreID)
	body.Data.Relationships.Variant = newRelationship("variants", g.cfg.VariantID)

	payload, err := json.Marshal(body)
	if err != nil {
		return Checkout{}, errors.Join(commonErrors.ErrInternal, err)
	}

	url := strings.TrimSuffix(g.cfg.BaseURL, "/") + checkoutsPath
	req, err := http.NewRequestWithContext(c, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Checkout{}, errors.Join(commonErrors.ErrInternal, err)
	}
	req.Header.Set("Accept", contentTypeJsonApi)
	req.Header.Set(constants.HeaderContentType, contentTypeJsonApi)
	req.Header.Set(constants.HeaderAuthorization, "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return Checkout{}, errors.Join(commonErrors.ErrInternal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		if isRejection(resp.StatusCode) {
			return Checkout{}, fmt.Errorf(
				"%w: %w: status code=%d with body=%s",
				commonErrors.ErrInternal,
				errRejected,
				resp.StatusCode,
				message,
			)
		}
		return Checkout{}, fmt.Errorf(
			"%w: payment gateway returned status code=%d with body=%s",
			commonErrors.ErrInternal,
			resp.StatusCode,
			message,
		)
	}

	respBody := checkoutResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return Checkout{}, errors.Join(commonErrors.ErrInternal, err)
	}
	if respBody.Data.ID == "" || respBody.Data.Attributes.URL == "" {
		return Checkout{}, fmt.Errorf("%w: payment gateway returned an incomplete checkout", commonErrors.ErrInternal)
	}

	return Checkout{ExternalId: respBody.Data.ID, Url: respBody.Data.Attributes.URL}, nil
}

// isRejection reports client errors other than throttling and timeouts, which
// still point at a struggling provider.
func isRejection(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout {
		return false
	}
	return statusCode >= 400 && statusCode < 500
}
