package transport

import (
	"net/http"

	"github.com/pkg/errors"

	"order/pkg/domain/model"
)

var (
	errBuyerRequired  = errors.New("X-Buyer-Id header is required")
	errInvalidOrderID = errors.New("order id must be a positive integer")
	errInvalidBody    = errors.New("request body is not valid JSON")
	errInvalidPaging  = errors.New("offset and limit must be integers")
	errInvalidStatus  = errors.New("unknown order status")
)

func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, errBuyerRequired):
		return http.StatusUnauthorized, false
	case errors.Is(err, errInvalidOrderID),
		errors.Is(err, errInvalidBody),
		errors.Is(err, errInvalidPaging),
		errors.Is(err, errInvalidStatus),
		errors.Is(err, model.ErrInvalidAddress),
		errors.Is(err, model.ErrInvalidPaymentDetails),
		errors.Is(err, model.ErrEmptyBasket),
		errors.Is(err, model.ErrRequestIDRequired),
		errors.Is(err, model.ErrInvalidRejection):
		return http.StatusBadRequest, false
	case errors.Is(err, model.ErrOrderNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, false
	case errors.Is(err, model.ErrOptimisticLock):
		return http.StatusConflict, true
	case errors.Is(err, model.ErrIllegalTransition), errors.Is(err, model.ErrRequestIDConflict):
		return http.StatusConflict, false
	default:
		return http.StatusInternalServerError, false
	}
}
