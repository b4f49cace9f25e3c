package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alturino/storefront/checkout/internal/common/otel"
	"github.com/Alturino/storefront/checkout/internal/gateway"
	"github.com/Alturino/storefront/checkout/pkg/event"
	"github.com/Alturino/storefront/checkout/pkg/request"
	"github.com/Alturino/storefront/checkout/pkg/response"
	"github.com/Alturino/storefront/internal/common/constants"
	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/inventory"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/pricing"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/variant"
)

// errSessionClosed signals that another delivery moved the session to a
// terminal state while this one waited for the row lock.
var errSessionClosed = errors.New("checkout session reached a terminal state concurrently")

type PaymentGateway interface {
	CreateCheckout(c context.Context, param gateway.CreateCheckout) (gateway.Checkout, error)
}

// CheckoutService quotes carts against the payment gateway and settles the
// confirmations the gateway sends back. Settlement turns the cart into orders
// and decrements stock in one transaction, or changes nothing.
type CheckoutService struct {
	pool    *pgxpool.Pool
	queries *repository.Queries
	guard   *inventory.Guard
	gateway PaymentGateway
	cache   *redis.Client
	cfg     config.Checkout
	now     func() time.Time
}

func NewCheckoutService(
	pool *pgxpool.Pool,
	gateway PaymentGateway,
	cache *redis.Client,
	cfg config.Checkout,
) *CheckoutService {
	return &CheckoutService{
		pool:    pool,
		queries: repository.New(pool),
		guard:   inventory.NewGuard(pool),
		gateway: gateway,
		cache:   cache,
		cfg:     cfg,
		now:     time.Now,
	}
}

// CreateSession quotes the user's current cart and opens a payment session
// for that total. Stock and cart are left untouched.
func (svc *CheckoutService) CreateSession(
	c context.Context,
	userId string,
) (response.CreatedSession, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService CreateSession")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService CreateSession").
		Str(log.KeyUserID, userId).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart lines").Logger()
	logger.Trace().Msg("finding cart lines")
	rows, err := svc.queries.FindCartLinesByUserId(c, userId)
	if err != nil {
		err = fmt.Errorf("failed finding cart lines with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CreatedSession{}, err
	}
	if len(rows) == 0 {
		err = fmt.Errorf("failed creating checkout session with error=%w", commonErrors.ErrEmptyCart)
		commonErrors.HandleError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		return response.CreatedSession{}, err
	}
	logger.Trace().Int(log.KeyCartLines, len(rows)).Msg("found cart lines")

	lines := make([]pricing.Line, 0, len(rows))
	items := make([]string, 0, len(rows))
	for _, row := range rows {
		line := pricing.Line{
			Price:    repository.DecimalFromNumeric(row.ProductPrice),
			Quantity: row.Quantity,
		}
		lines = append(lines, line)
		items = append(items, fmt.Sprintf("%s (x %d) price: %s", row.ProductName, row.Quantity, line.Total().StringFixed(2)))
	}
	quote := pricing.Compute(lines, svc.cfg.Shipping, svc.cfg.TaxPercent)
	sessionId, err := uuid.NewV7()
	if err != nil {
		err = fmt.Errorf("failed generating sessionId with error=%w", errors.Join(commonErrors.ErrInternal, err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CreatedSession{}, err
	}
	expiresAt := svc.now().Add(svc.cfg.SessionTTL)
	logger = logger.With().
		Str(log.KeySessionID, sessionId.String()).
		Any(log.KeyQuote, quote).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "creating payment checkout").Logger()
	logger.Trace().Msg("creating payment checkout")
	c = logger.WithContext(c)
	checkout, err := svc.gateway.CreateCheckout(c, gateway.CreateCheckout{
		SessionId: sessionId,
		UserId:    userId,
		Total:     quote.Total,
		ExpiresAt: expiresAt,
		Description: fmt.Sprintf(
			"your items: %s [shipping %s, tax %s]",
			strings.Join(items, ", "),
			quote.Shipping.StringFixed(2),
			quote.Tax.StringFixed(2),
		),
	})
	if err != nil {
		err = fmt.Errorf("failed creating payment checkout with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CreatedSession{}, err
	}
	logger = logger.With().Str(log.KeyExternalID, checkout.ExternalId).Logger()
	logger.Trace().Msg("created payment checkout")

	logger = logger.With().Str(log.KeyProcess, "inserting checkout session").Logger()
	logger.Trace().Msg("inserting checkout session")
	_, err = svc.queries.InsertCheckoutSession(c, repository.InsertCheckoutSessionParams{
		ID:          sessionId,
		UserID:      userId,
		ExternalID:  checkout.ExternalId,
		Url:         checkout.Url,
		QuotedTotal: repository.NumericFromDecimal(quote.Total),
		ExpiresAt:   repository.Timestamptz(expiresAt),
	})
	if err != nil {
		err = fmt.Errorf("failed inserting checkout session with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CreatedSession{}, err
	}
	metrics.CheckoutSessions.Inc()
	logger.Info().Msg("inserted checkout session")

	return response.CreatedSession{
		SessionId: sessionId,
		Url:       checkout.Url,
		Quote:     quote,
		ExpiresAt: expiresAt,
	}, nil
}

// Reconcile settles a payment confirmation. It is safe to call repeatedly
// and concurrently for the same session: once the session is terminal every
// call returns the stored result without executing anything.
func (svc *CheckoutService) Reconcile(
	c context.Context,
	param request.Reconcile,
) (response.Settlement, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService Reconcile")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService Reconcile").
		Str(log.KeySessionID, param.SessionId.String()).
		Str(log.KeyUserID, param.UserId).
		Str(log.KeyConfirmedAmount, param.ConfirmedAmount.String()).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding checkout session").Logger()
	logger.Trace().Msg("finding checkout session")
	session, err := svc.queries.FindCheckoutSessionById(c, param.SessionId)
	if err != nil {
		err = fmt.Errorf("failed finding checkout session with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}
	logger = logger.With().Str(log.KeyStatus, session.Status).Logger()
	logger.Trace().Msg("found checkout session")

	if session.UserID != param.UserId {
		err = fmt.Errorf("%w: session does not belong to userId=%s", commonErrors.ErrValidation, param.UserId)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}
	if param.ConfirmedAmount.IsNegative() {
		err = fmt.Errorf("%w: confirmed amount must not be negative", commonErrors.ErrValidation)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}

	c = logger.WithContext(c)
	if IsTerminal(session.Status) {
		return svc.replay(c, session)
	}

	if svc.now().After(session.ExpiresAt.Time) {
		err = fmt.Errorf("failed reconciling session with error=%w", commonErrors.ErrExpiredSession)
		commonErrors.HandleError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		return svc.reject(c, session, param.ConfirmedAmount, err)
	}

	logger = logger.With().Str(log.KeyProcess, "settling checkout session").Logger()
	logger.Trace().Msg("settling checkout session")
	c = logger.WithContext(c)
	settlement, err := svc.settle(c, session, param.ConfirmedAmount)
	if errors.Is(err, errSessionClosed) {
		return svc.reload(c, session.ID)
	}
	if _, rejected := rejectionReason(err); rejected {
		commonErrors.HandleError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		return svc.reject(c, session, param.ConfirmedAmount, err)
	}
	if err != nil {
		err = fmt.Errorf("failed settling checkout session with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}
	metrics.Reconciliations.WithLabelValues(StatusSettled, "", metrics.OutcomeExecuted).Inc()
	logger.Info().Int("orderCount", len(settlement.Orders)).Msg("settled checkout session")

	svc.publish(c, settlement)

	return settlement, nil
}

// settle runs the all-or-nothing conversion of the cart into orders. The
// session row lock serializes concurrent deliveries of the same webhook and
// the cart line locks keep edits out until commit.
func (svc *CheckoutService) settle(
	c context.Context,
	session repository.CheckoutSession,
	confirmedAmount decimal.Decimal,
) (response.Settlement, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService settle")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService settle").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "initializing transaction").Logger()
	logger.Trace().Msg("initializing transaction")
	tx, err := svc.pool.BeginTx(c, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		err = fmt.Errorf("failed initializing transaction with error=%w", errors.Join(commonErrors.ErrInternal, err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}
	defer func() {
		logger := logger.With().Str(log.KeyProcess, "rolling back transaction").Logger()
		err := tx.Rollback(c)
		if err != nil {
			if errors.Is(err, pgx.ErrTxClosed) {
				return
			}
			err = fmt.Errorf("failed rolling back transaction with error=%w", err)
			commonErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Trace().Msg("rolled back transaction")
	}()
	queries := svc.queries.WithTx(tx)
	guard := svc.guard.WithTx(tx)

	logger = logger.With().Str(log.KeyProcess, "locking checkout session").Logger()
	logger.Trace().Msg("locking checkout session")
	locked, err := queries.LockCheckoutSessionById(c, session.ID)
	if err != nil {
		err = fmt.Errorf("failed locking checkout session with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}
	if IsTerminal(locked.Status) {
		return response.Settlement{}, errSessionClosed
	}
	if svc.now().After(locked.ExpiresAt.Time) {
		return response.Settlement{}, fmt.Errorf("failed settling session with error=%w", commonErrors.ErrExpiredSession)
	}
	logger.Trace().Msg("locked checkout session")

	logger = logger.With().Str(log.KeyProcess, "locking cart lines").Logger()
	logger.Trace().Msg("locking cart lines")
	rows, err := queries.LockCartLinesByUserId(c, session.UserID)
	if err != nil {
		err = fmt.Errorf("failed locking cart lines with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}
	if len(rows) == 0 {
		return response.Settlement{}, fmt.Errorf("failed settling session with error=%w", commonErrors.ErrEmptyCart)
	}
	logger.Trace().Int(log.KeyCartLines, len(rows)).Msg("locked cart lines")

	lines := make([]pricing.Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, pricing.Line{
			Price:    repository.DecimalFromNumeric(row.ProductPrice),
			Quantity: row.Quantity,
		})
	}
	recomputed := pricing.Compute(lines, svc.cfg.Shipping, svc.cfg.TaxPercent).Total
	logger = logger.With().Str(log.KeyRecomputedTotal, recomputed.String()).Logger()
	if confirmedAmount.LessThan(recomputed) {
		return response.Settlement{}, fmt.Errorf(
			"failed settling session confirmed=%s recomputed=%s with error=%w",
			confirmedAmount.StringFixed(2),
			recomputed.StringFixed(2),
			commonErrors.ErrPaymentMismatch,
		)
	}

	// decrement in product order so concurrent settlements sharing products
	// lock rows in the same sequence
	byProduct := slices.Clone(rows)
	slices.SortStableFunc(byProduct, func(a, b repository.LockCartLinesByUserIdRow) int {
		return strings.Compare(a.ProductID.String(), b.ProductID.String())
	})
	logger = logger.With().Str(log.KeyProcess, "decrementing stock").Logger()
	logger.Trace().Msg("decrementing stock")
	c = logger.WithContext(c)
	for _, row := range byProduct {
		if _, err := guard.Decrement(c, row.ProductID, row.Quantity); err != nil {
			err = fmt.Errorf("failed decrementing stock with error=%w", err)
			commonErrors.HandleError(err, span)
			logger.Warn().Err(err).Msg(err.Error())
			return response.Settlement{}, err
		}
	}
	logger.Trace().Msg("decremented stock")

	logger = logger.With().Str(log.KeyProcess, "inserting orders").Logger()
	logger.Trace().Msg("inserting orders")
	orders := make([]response.Order, 0, len(rows))
	for _, row := range rows {
		orderId, err := uuid.NewV7()
		if err != nil {
			return response.Settlement{}, errors.Join(commonErrors.ErrInternal, err)
		}
		order, err := queries.InsertOrder(c, repository.InsertOrderParams{
			ID:        orderId,
			SessionID: session.ID,
			UserID:    session.UserID,
			ProductID: row.ProductID,
			Quantity:  row.Quantity,
			Price:     row.ProductPrice,
			Selection: row.Selection,
		})
		if err != nil {
			err = fmt.Errorf("failed inserting order with error=%w", commonErrors.FromPostgres(err))
			commonErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Settlement{}, err
		}
		selection, err := variant.ParseSelection(order.Selection)
		if err != nil {
			return response.Settlement{}, errors.Join(commonErrors.ErrInternal, err)
		}
		orders = append(orders, response.Order{
			Id:          order.ID,
			ProductId:   order.ProductID,
			ProductName: row.ProductName,
			Quantity:    order.Quantity,
			Price:       repository.DecimalFromNumeric(order.Price),
			Selection:   selection,
			Status:      order.Status,
			CreatedAt:   order.CreatedAt.Time,
		})
	}
	logger.Trace().Msg("inserted orders")

	// only the locked lines were priced and ordered, lines added meanwhile stay
	logger = logger.With().Str(log.KeyProcess, "deleting cart lines").Logger()
	logger.Trace().Msg("deleting cart lines")
	lineIds := make([]int64, 0, len(rows))
	for _, row := range rows {
		lineIds = append(lineIds, row.ID)
	}
	if _, err := queries.DeleteCartLinesByIds(c, lineIds); err != nil {
		err = fmt.Errorf("failed deleting cart lines with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}
	logger.Trace().Msg("deleted cart lines")

	logger = logger.With().Str(log.KeyProcess, "settling checkout session").Logger()
	logger.Trace().Msg("settling checkout session")
	settled, err := queries.SettleCheckoutSession(c, repository.SettleCheckoutSessionParams{
		ID:              session.ID,
		ConfirmedAmount: repository.NumericFromDecimal(confirmedAmount),
	})
	if err != nil {
		err = fmt.Errorf("failed settling checkout session with error=%w", commonErrors.FromPostgres(err))
		if errors.Is(err, commonErrors.ErrNotFound) {
			err = errors.Join(commonErrors.ErrInternal, err)
		}
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "committing transaction").Logger()
	logger.Trace().Msg("committing transaction")
	if err := tx.Commit(c); err != nil {
		err = fmt.Errorf("failed committing transaction with error=%w", errors.Join(commonErrors.ErrInternal, err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}
	logger.Trace().Msg("committed transaction")

	settlement := mapSettlement(settled)
	settlement.Orders = orders
	return settlement, nil
}

// reject records the rejection cause on the session and returns it. When the
// session was closed concurrently the stored outcome wins.
func (svc *CheckoutService) reject(
	c context.Context,
	session repository.CheckoutSession,
	confirmedAmount decimal.Decimal,
	cause error,
) (response.Settlement, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService reject")
	defer span.End()

	reason, _ := rejectionReason(cause)
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService reject").
		Str(log.KeyReason, reason).
		Str(log.KeyProcess, "rejecting checkout session").
		Logger()

	logger.Trace().Msg("rejecting checkout session")
	rejected, err := svc.queries.RejectCheckoutSession(c, repository.RejectCheckoutSessionParams{
		ID:              session.ID,
		Reason:          repository.Text(reason),
		ConfirmedAmount: repository.NumericFromDecimal(confirmedAmount),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		logger.Info().Msg("checkout session already terminal")
		return svc.reload(c, session.ID)
	}
	if err != nil {
		err = fmt.Errorf("failed rejecting checkout session with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}
	metrics.Reconciliations.WithLabelValues(StatusRejected, reason, metrics.OutcomeExecuted).Inc()
	logger.Info().Msg("rejected checkout session")

	return mapSettlement(rejected), cause
}

func (svc *CheckoutService) reload(c context.Context, sessionId uuid.UUID) (response.Settlement, error) {
	session, err := svc.queries.FindCheckoutSessionById(c, sessionId)
	if err != nil {
		return response.Settlement{}, fmt.Errorf(
			"failed reloading checkout session with error=%w",
			commonErrors.FromPostgres(err),
		)
	}
	return svc.replay(c, session)
}

// replay returns the stored outcome of a terminal session.
func (svc *CheckoutService) replay(
	c context.Context,
	session repository.CheckoutSession,
) (response.Settlement, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService replay")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService replay").
		Str(log.KeySessionID, session.ID.String()).
		Str(log.KeyStatus, session.Status).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding settled orders").Logger()
	orders, err := svc.findOrders(c, session.ID)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Settlement{}, err
	}

	settlement := mapSettlement(session)
	settlement.Orders = orders
	settlement.Replayed = true
	metrics.Reconciliations.WithLabelValues(session.Status, session.Reason.String, metrics.OutcomeReplayed).Inc()
	logger.Info().
		Err(commonErrors.ErrDuplicateReconciliation).
		Msg("replaying stored reconciliation result")
	return settlement, nil
}

func (svc *CheckoutService) findOrders(c context.Context, sessionId uuid.UUID) ([]response.Order, error) {
	rows, err := svc.queries.FindOrdersBySessionId(c, sessionId)
	if err != nil {
		return nil, fmt.Errorf("failed finding orders with error=%w", commonErrors.FromPostgres(err))
	}
	orders := make([]response.Order, 0, len(rows))
	for _, row := range rows {
		selection, err := variant.ParseSelection(row.Selection)
		if err != nil {
			return nil, errors.Join(commonErrors.ErrInternal, err)
		}
		orders = append(orders, response.Order{
			Id:          row.ID,
			ProductId:   row.ProductID,
			ProductName: row.ProductName,
			Quantity:    row.Quantity,
			Price:       repository.DecimalFromNumeric(row.Price),
			Selection:   selection,
			Status:      row.Status,
			CreatedAt:   row.CreatedAt.Time,
		})
	}
	return orders, nil
}

// publish announces a committed settlement. Failures are logged only, the
// settlement itself is already durable.
func (svc *CheckoutService) publish(c context.Context, settlement response.Settlement) {
	c, span := otel.Tracer.Start(c, "CheckoutService publish")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService publish").
		Str(log.KeyChannel, constants.ChannelOrderSettled).
		Logger()

	orderIds := make([]uuid.UUID, 0, len(settlement.Orders))
	for _, order := range settlement.Orders {
		orderIds = append(orderIds, order.Id)
	}
	payload, err := json.Marshal(event.OrderSettled{
		SessionId: settlement.SessionId,
		UserId:    settlement.UserId,
		OrderIds:  orderIds,
	})
	if err != nil {
		logger.Error().Err(err).Msg(err.Error())
		return
	}

	logger = logger.With().Str(log.KeyProcess, "publishing order settled").Logger()
	if err := svc.cache.Publish(c, constants.ChannelOrderSettled, payload).Err(); err != nil {
		err = fmt.Errorf("failed publishing order settled with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
	}

	cacheKey := fmt.Sprintf(constants.CacheKeyCartLines, settlement.UserId)
	logger = logger.With().Str(log.KeyProcess, "invalidating cart cache").Str(log.KeyCacheKey, cacheKey).Logger()
	_, err = svc.cache.TxPipelined(c, func(pipe redis.Pipeliner) error {
		versionKey := fmt.Sprintf(constants.CacheKeyCartVersion, settlement.UserId)
		pipe.Incr(c, versionKey)
		pipe.Expire(c, versionKey, constants.CartVersionTTL)
		pipe.Del(c, cacheKey)
		return nil
	})
	if err != nil {
		err = fmt.Errorf("failed invalidating cart cache with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
	}
}

// FindSession returns a session to its owner. Sessions of other users are
// reported as not found.
func (svc *CheckoutService) FindSession(
	c context.Context,
	sessionId uuid.UUID,
	userId string,
) (response.Session, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService FindSession")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService FindSession").
		Str(log.KeySessionID, sessionId.String()).
		Str(log.KeyUserID, userId).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding checkout session").Logger()
	logger.Trace().Msg("finding checkout session")
	session, err := svc.queries.FindCheckoutSessionById(c, sessionId)
	if err == nil && session.UserID != userId {
		err = pgx.ErrNoRows
	}
	if err != nil {
		err = fmt.Errorf("failed finding checkout session with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Session{}, err
	}

	orders, err := svc.findOrders(c, session.ID)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Session{}, err
	}
	logger.Trace().Msg("found checkout session")

	return response.Session{
		Id:          session.ID,
		UserId:      session.UserID,
		Url:         session.Url,
		QuotedTotal: repository.DecimalFromNumeric(session.QuotedTotal),
		Status:      session.Status,
		Reason:      session.Reason.String,
		ExpiresAt:   session.ExpiresAt.Time,
		CreatedAt:   session.CreatedAt.Time,
		Orders:      orders,
	}, nil
}

// SweepExpired rejects every pending session whose expiry has passed and
// returns their ids.
func (svc *CheckoutService) SweepExpired(c context.Context) ([]uuid.UUID, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService SweepExpired")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService SweepExpired").
		Str(log.KeyProcess, "rejecting expired checkout sessions").
		Logger()

	logger.Trace().Msg("rejecting expired checkout sessions")
	sessions, err := svc.queries.RejectExpiredCheckoutSessions(c, repository.Timestamptz(svc.now()))
	if err != nil {
		err = fmt.Errorf("failed rejecting expired checkout sessions with error=%w", commonErrors.FromPostgres(err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}
	metrics.ExpiredSessions.Add(float64(len(ids)))
	if len(ids) > 0 {
		logger.Info().Any(log.KeyExpiredSessionsIDs, ids).Msg("rejected expired checkout sessions")
	}
	return ids, nil
}

func mapSettlement(session repository.CheckoutSession) response.Settlement {
	settlement := response.Settlement{
		SessionId: session.ID,
		UserId:    session.UserID,
		Status:    session.Status,
		Reason:    session.Reason.String,
		Orders:    []response.Order{},
	}
	if session.ConfirmedAmount.Valid {
		amount := repository.DecimalFromNumeric(session.ConfirmedAmount)
		settlement.ConfirmedAmount = &amount
	}
	return settlement
}

