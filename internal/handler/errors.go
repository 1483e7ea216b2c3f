package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/domain/checkout"
	"github.com/xenking/acidic-storefront/internal/domain/loyalty"
	"github.com/xenking/acidic-storefront/internal/domain/order"
	"github.com/xenking/acidic-storefront/internal/domain/product"
	"github.com/xenking/acidic-storefront/internal/domain/promo"
	"github.com/xenking/acidic-storefront/internal/storefront"
)

// mapError converts domain errors to an HTTP status and client message.
// Unknown errors are 500 with a generic message.
func mapError(err error) (int, string) {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, storefront.ErrNotSignedIn):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, storefront.ErrInvalidUser):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, loyalty.ErrProfileNotFound),
		errors.Is(err, cart.ErrIndexOutOfRange):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, checkout.ErrPaymentAlreadyInProgress),
		errors.Is(err, checkout.ErrInvalidTransition):
		return http.StatusConflict, err.Error()

	case errors.Is(err, checkout.ErrPaymentFailed):
		return http.StatusPaymentRequired, err.Error()

	case errors.Is(err, product.ErrUnknownVariant),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrQuantityLimitExceeded),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrValidation),
		errors.Is(err, promo.ErrInvalidCode),
		errors.Is(err, promo.ErrExpired),
		errors.Is(err, promo.ErrUsageLimitReached),
		errors.Is(err, loyalty.ErrInsufficientPoints),
		errors.Is(err, loyalty.ErrInvalidPoints):
		return http.StatusUnprocessableEntity, err.Error()

	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "request cancelled"
	}
	return http.StatusInternalServerError, "internal error"
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := mapError(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}

	var verr *checkout.ValidationError
	isValidation := errors.As(err, &verr)

	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		if isValidation {
			e.FieldStart("fields")
			e.ArrStart()
			for _, f := range verr.Fields {
				e.ObjStart()
				e.FieldStart("name")
				e.Str(f.Name)
				e.FieldStart("error")
				e.Str(f.Error.Error())
				e.ObjEnd()
			}
			e.ArrEnd()
		}
		e.ObjEnd()
	})
}
