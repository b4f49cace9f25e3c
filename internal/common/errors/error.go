package errors

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrEmptyAuth        = errors.New("missing authorization")
	ErrEmptySubject     = errors.New("missing subject")
	ErrTokenInvalid     = errors.New("invalid token")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

var (
	ErrValidation              = errors.New("validation error")
	ErrNotFound                = errors.New("not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrOutOfStock              = errors.New("product is out of stock")
	ErrPaymentMismatch         = errors.New("confirmed amount is below the order total")
	ErrExpiredSession          = errors.New("checkout session expired")
	ErrDuplicateReconciliation = errors.New("checkout session already reconciled")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrInternal                = errors.New("internal error")
)

const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgUniqueViolation     = "23505"
)

func HandleError(err error, span trace.Span) {
	if err == nil {
		return
	}
	span.AddEvent(err.Error())
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}

// FromPostgres translates driver errors into the domain taxonomy. Errors it
// does not recognize are marked internal.
func FromPostgres(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Join(ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return errors.Join(ErrNotFound, errors.New("product no longer exists"), err)
		case pgCheckViolation:
			return errors.Join(ErrValidation, errors.New("invalid quantity"), err)
		case pgUniqueViolation:
			return errors.Join(ErrValidation, err)
		}
	}
	return errors.Join(ErrInternal, err)
}

func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrEmptyAuth),
		errors.Is(err, ErrEmptySubject),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation), errors.Is(err, ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrOutOfStock),
		errors.Is(err, ErrDuplicateReconciliation):
		return http.StatusConflict
	case errors.Is(err, ErrPaymentMismatch):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrExpiredSession):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
