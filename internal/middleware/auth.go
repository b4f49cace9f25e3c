package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/common"
	"github.com/Alturino/storefront/internal/common/constants"
	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/common/response"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
)

func Auth(cfg config.Application) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context()).With().Str(log.KeyTag, "middleware Auth").Logger()
			c := logger.WithContext(r.Context())

			authorization := r.Header.Get(constants.HeaderAuthorization)
			scheme, token, found := strings.Cut(authorization, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				logger.Error().
					Err(commonErrors.ErrEmptyAuth).
					Msg(commonErrors.ErrEmptyAuth.Error())
				response.WriteErrorResponse(c, w, commonErrors.ErrEmptyAuth)
				return
			}

			userId, err := common.VerifyToken(c, token, cfg)
			if err != nil {
				logger.Error().Err(err).Msg(err.Error())
				response.WriteErrorResponse(c, w, err)
				return
			}

			logger = logger.With().Str(log.KeyUserID, userId).Logger()
			c = logger.WithContext(common.AttachUserIdToContext(c, userId))
			next.ServeHTTP(w, r.WithContext(c))
		})
	}
}
