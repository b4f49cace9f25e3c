package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/checkout/internal/common/otel"
	"github.com/Alturino/storefront/checkout/internal/service"
	"github.com/Alturino/storefront/checkout/pkg/request"
	"github.com/Alturino/storefront/internal/common"
	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/common/response"
	"github.com/Alturino/storefront/internal/common/validate"
	"github.com/Alturino/storefront/internal/log"
)

type CheckoutController struct {
	service *service.CheckoutService
}

// AttachCheckoutController registers the user facing routes on api and the
// gateway callback on webhooks. The two routers carry different middleware.
func AttachCheckoutController(api *mux.Router, webhooks *mux.Router, service *service.CheckoutService) {
	controller := CheckoutController{service: service}

	router := api.PathPrefix("/checkouts").Subrouter()
	router.HandleFunc("", controller.CreateSession).Methods(http.MethodPost)
	router.HandleFunc("/{sessionId}", controller.FindSession).Methods(http.MethodGet)

	webhooks.HandleFunc("/webhooks/payment", controller.HandleWebhook).Methods(http.MethodPost)
}

func (ctrl CheckoutController) CreateSession(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController CreateSession")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController CreateSession").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "getting userId").Logger()
	userId, err := common.UserIdFromContext(c)
	if err != nil {
		err = fmt.Errorf("failed getting userId with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		response.WriteErrorResponse(c, w, err)
		return
	}
	logger = logger.With().Str(log.KeyUserID, userId).Logger()

	logger = logger.With().Str(log.KeyProcess, "creating checkout session").Logger()
	logger.Info().Msg("creating checkout session")
	c = logger.WithContext(c)
	session, err := ctrl.service.CreateSession(c, userId)
	if err != nil {
		err = fmt.Errorf("failed creating checkout session with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		response.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Str(log.KeySessionID, session.SessionId.String()).Msg("created checkout session")

	response.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusCreated,
		"message":    "successfully created checkout session",
		"data": map[string]interface{}{
			"session": session,
		},
	})
}

func (ctrl CheckoutController) FindSession(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController FindSession")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController FindSession").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "validating sessionId").Logger()
	pathValues := mux.Vars(r)
	sessionId, err := uuid.Parse(pathValues["sessionId"])
	if err != nil {
		err = fmt.Errorf("failed validating sessionId with error=%w", errors.Join(commonErrors.ErrValidation, err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		response.WriteErrorResponse(c, w, err)
		return
	}
	logger = logger.With().
		Str(log.KeySessionID, sessionId.String()).
		Any(log.KeyPathValues, pathValues).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "getting userId").Logger()
	userId, err := common.UserIdFromContext(c)
	if err != nil {
		err = fmt.Errorf("failed getting userId with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		response.WriteErrorResponse(c, w, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "finding checkout session").Logger()
	logger.Trace().Msg("finding checkout session")
	c = logger.WithContext(c)
	session, err := ctrl.service.FindSession(c, sessionId, userId)
	if err != nil {
		err = fmt.Errorf("failed finding checkout session with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		response.WriteErrorResponse(c, w, err)
		return
	}
	logger.Trace().Msg("found checkout session")

	response.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    fmt.Sprintf("sessionId=%s found", sessionId.String()),
		"data": map[string]interface{}{
			"session": session,
		},
	})
}

func (ctrl CheckoutController) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController HandleWebhook")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController HandleWebhook").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding webhook").Logger()
	logger.Trace().Msg("decoding webhook")
	webhook := request.Webhook{}
	if err := json.NewDecoder(r.Body).Decode(&webhook); err != nil {
		err = fmt.Errorf("failed decoding webhook with error=%w", errors.Join(commonErrors.ErrValidation, err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		response.WriteErrorResponse(c, w, err)
		return
	}
	logger = logger.With().Str(log.KeyEventName, webhook.Meta.EventName).Logger()

	if !webhook.Settles() {
		logger.Info().Msg("ignoring webhook that does not confirm a payment")
		response.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "success",
			"statusCode": http.StatusOK,
			"message":    fmt.Sprintf("event=%s ignored", webhook.Meta.EventName),
		})
		return
	}

	logger = logger.With().Str(log.KeyProcess, "validating webhook").Logger()
	if err := validate.New().StructCtx(c, webhook); err != nil {
		err = fmt.Errorf("failed validating webhook with error=%w", errors.Join(commonErrors.ErrValidation, err))
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		response.WriteErrorResponse(c, w, err)
		return
	}
	param, err := webhook.Reconcile()
	if err != nil {
		err = fmt.Errorf("failed mapping webhook with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		response.WriteErrorResponse(c, w, err)
		return
	}
	logger.Trace().Msg("validated webhook")

	logger = logger.With().Str(log.KeyProcess, "reconciling checkout session").Logger()
	logger.Info().Msg("reconciling checkout session")
	c = logger.WithContext(c)
	settlement, err := ctrl.service.Reconcile(c, param)
	if err != nil {
		err = fmt.Errorf("failed reconciling checkout session with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		response.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": commonErrors.StatusCode(err),
			"message":    err.Error(),
			"data": map[string]interface{}{
				"settlement": settlement,
			},
		})
		return
	}
	logger.Info().
		Str(log.KeyStatus, settlement.Status).
		Bool("replayed", settlement.Replayed).
		Msg("reconciled checkout session")

	response.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    fmt.Sprintf("sessionId=%s %s", settlement.SessionId, settlement.Status),
		"data": map[string]interface{}{
			"settlement": settlement,
		},
	})
}
