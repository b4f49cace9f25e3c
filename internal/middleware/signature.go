package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/common/constants"
	commonErrors "github.com/Alturino/storefront/internal/common/errors"
	"github.com/Alturino/storefront/internal/common/response"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
)

// Sign returns the hex HMAC-SHA256 of body the payment gateway puts in
// the X-Signature header.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Signature rejects webhook deliveries whose body was not signed with the
// shared webhook secret. Verification is skipped in sandbox mode.
func Signature(cfg config.Payment) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context()).With().Str(log.KeyTag, "middleware Signature").Logger()
			c := logger.WithContext(r.Context())

			if cfg.Sandbox {
				logger.Warn().Msg("sandbox mode skipping webhook signature verification")
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error().Err(err).Msg(err.Error())
				response.WriteErrorResponse(c, w, commonErrors.ErrValidation)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			signature, err := hex.DecodeString(r.Header.Get(constants.HeaderSignature))
			expected, _ := hex.DecodeString(Sign(body, cfg.WebhookSecret))
			if err != nil || len(signature) == 0 || !hmac.Equal(signature, expected) {
				logger.Error().
					Err(commonErrors.ErrInvalidSignature).
					Msg(commonErrors.ErrInvalidSignature.Error())
				response.WriteErrorResponse(c, w, commonErrors.ErrInvalidSignature)
				return
			}

			next.ServeHTTP(w, r.WithContext(c))
		})
	}
}
