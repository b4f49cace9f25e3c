package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/checkout/internal/service"
	"github.com/Alturino/storefront/internal/common/constants"
	"github.com/Alturino/storefront/internal/log"
)

// SessionSweeper periodically rejects pending sessions whose expiry passed
// without a payment confirmation.
type SessionSweeper struct {
	svc      *service.CheckoutService
	interval time.Duration
}

func NewSessionSweeper(svc *service.CheckoutService, interval time.Duration) *SessionSweeper {
	return &SessionSweeper{svc: svc, interval: interval}
}

func (swp SessionSweeper) StartWorker(c context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "SessionSweeper StartWorker").
		Str(log.KeyAppName, constants.AppCheckoutSweeper).
		Str(log.KeyProcess, "sweeping expired sessions").
		Logger()

	ticker := time.NewTicker(swp.interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", swp.interval).Msg("started session sweeper")
	for {
		select {
		case <-c.Done():
			logger.Info().Msg("stopped session sweeper")
			return
		case <-ticker.C:
			requestID := uuid.NewString()
			logger := logger.With().Str(log.KeyRequestID, requestID).Logger()
			c := log.AttachRequestIDToContext(logger.WithContext(c), requestID)

			ids, err := swp.svc.SweepExpired(c)
			if err != nil {
				err = fmt.Errorf("failed sweeping expired sessions with error=%w", err)
				logger.Error().Err(err).Msg(err.Error())
				continue
			}
			logger.Trace().Int("swept", len(ids)).Msg("swept expired sessions")
		}
	}
}
