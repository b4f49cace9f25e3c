package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/checkout/pkg/event"
	"github.com/Alturino/storefront/internal/common/constants"
	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/order/internal/service"
)

// OrderSettledListener consumes settlement announcements and keeps the
// order history cache in step with them.
type OrderSettledListener struct {
	svc    *service.OrderService
	client *redis.Client
}

func NewOrderSettledListener(svc *service.OrderService, client *redis.Client) *OrderSettledListener {
	return &OrderSettledListener{svc: svc, client: client}
}

func (lst OrderSettledListener) StartWorker(c context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderSettledListener StartWorker").
		Str(log.KeyAppName, constants.AppOrderListener).
		Str(log.KeyChannel, constants.ChannelOrderSettled).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "subscribing").Logger()
	logger.Info().Msg("subscribing")
	pubsub := lst.client.Subscribe(c, constants.ChannelOrderSettled)
	defer func() {
		if err := pubsub.Close(); err != nil {
			logger.Warn().Err(err).Msg(err.Error())
		}
	}()
	if _, err := pubsub.Receive(c); err != nil {
		err = fmt.Errorf("failed subscribing with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("subscribed")

	logger = logger.With().Str(log.KeyProcess, "consuming order settled").Logger()
	messages := pubsub.Channel()
	for {
		select {
		case <-c.Done():
			logger.Info().Msg("stopped listener")
			return
		case msg, ok := <-messages:
			if !ok {
				logger.Info().Msg("subscription closed")
				return
			}
			requestID := uuid.NewString()
			logger := logger.With().Str(log.KeyRequestID, requestID).Logger()
			c := log.AttachRequestIDToContext(logger.WithContext(c), requestID)
			if err := lst.handle(c, msg.Payload); err != nil {
				err = fmt.Errorf("failed handling order settled with error=%w", err)
				logger.Error().Err(err).Msg(err.Error())
				continue
			}
			logger.Trace().Msg("handled order settled")
		}
	}
}

func (lst OrderSettledListener) handle(c context.Context, payload string) error {
	settled := event.OrderSettled{}
	if err := json.Unmarshal([]byte(payload), &settled); err != nil {
		return errors.Join(commonErrors.ErrValidation, err)
	}
	return lst.svc.HandleOrderSettled(c, settled)
}
