package integrationevent

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"order/pkg/domain/model"
	"order/pkg/domain/service"
)

var ErrMalformedEvent = errors.New("malformed event payload")

type Router struct {
	orders service.OrderService
}

func NewRouter(orders service.OrderService) *Router {
	return &Router{orders: orders}
}

// Route decodes body as the payload of kind and applies it to the order.
func (r *Router) Route(ctx context.Context, kind EventKind, body []byte) error {
	switch kind {
	case StockConfirmed:
		var event model.StockConfirmedEvent
		if err := decode(body, &event); err != nil {
			return err
		}
		_, err := r.orders.ConfirmStock(ctx, event.OrderID)
		return err
	case StockRejected:
		var event model.StockRejectedEvent
		if err := decode(body, &event); err != nil {
			return err
		}
		_, err := r.orders.RejectStock(ctx, event.OrderID, event.RejectedItems)
		return err
	case PaymentSucceeded:
		var event model.PaymentSucceededEvent
		if err := decode(body, &event); err != nil {
			return err
		}
		_, err := r.orders.MarkOrderAsPaid(ctx, event)
		return err
	case PaymentFailed:
		var event model.PaymentFailedEvent
		if err := decode(body, &event); err != nil {
			return err
		}
		_, err := r.orders.FailPayment(ctx, event)
		return err
	case GracePeriodExpired:
		var event model.GracePeriodExpiredEvent
		if err := decode(body, &event); err != nil {
			return err
		}
		return r.orders.ExpireGracePeriod(ctx, event.OrderID)
	default:
		return errors.Wrapf(ErrUnknownEventKind, "%d", int(kind))
	}
}

func decode(body []byte, event interface{}) error {
	if err := json.Unmarshal(body, event); err != nil {
		return errors.Wrap(ErrMalformedEvent, err.Error())
	}
	return nil
}
