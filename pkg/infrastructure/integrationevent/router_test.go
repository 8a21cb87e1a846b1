package integrationevent

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order/pkg/domain/model"
	"order/pkg/domain/service"
)

type recordingOrderService struct {
	service.OrderService
	calls    []string
	rejected []model.RejectedItem
	paid     model.PaymentSucceededEvent
	err      error
}

func (s *recordingOrderService) ConfirmStock(_ context.Context, orderID int64) (*model.Order, error) {
	s.calls = append(s.calls, "ConfirmStock")
	return &model.Order{ID: orderID}, s.err
}

func (s *recordingOrderService) RejectStock(_ context.Context, orderID int64, rejected []model.RejectedItem) (*model.Order, error) {
	s.calls = append(s.calls, "RejectStock")
	s.rejected = rejected
	return &model.Order{ID: orderID}, s.err
}

func (s *recordingOrderService) MarkOrderAsPaid(_ context.Context, event model.PaymentSucceededEvent) (*model.Order, error) {
	s.calls = append(s.calls, "MarkOrderAsPaid")
	s.paid = event
	return &model.Order{ID: event.OrderID}, s.err
}

func (s *recordingOrderService) FailPayment(_ context.Context, event model.PaymentFailedEvent) (*model.Order, error) {
	s.calls = append(s.calls, "FailPayment")
	return &model.Order{ID: event.OrderID}, s.err
}

func (s *recordingOrderService) ExpireGracePeriod(context.Context, int64) error {
	s.calls = append(s.calls, "ExpireGracePeriod")
	return s.err
}

func TestParseEventKind(t *testing.T) {
	for _, kind := range Kinds() {
		parsed, err := ParseEventKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := ParseEventKind("OrderShipped")
	assert.ErrorIs(t, err, ErrUnknownEventKind)
}

func TestRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("Dispatches every kind", func(t *testing.T) {
		orders := &recordingOrderService{}
		router := NewRouter(orders)

		require.NoError(t, router.Route(ctx, StockConfirmed, []byte(`{"orderId":1}`)))
		require.NoError(t, router.Route(ctx, StockRejected, []byte(
			`{"orderId":1,"rejectedItems":[{"menuItemId":5,"menuItemName":"A","requestedQuantity":2,"availableQuantity":1}]}`)))
		require.NoError(t, router.Route(ctx, PaymentSucceeded, []byte(
			`{"orderId":1,"amount":"20.00","currency":"USD","transactionId":"tx-1"}`)))
		require.NoError(t, router.Route(ctx, PaymentFailed, []byte(`{"orderId":1,"reason":"declined"}`)))
		require.NoError(t, router.Route(ctx, GracePeriodExpired, []byte(`{"orderId":1}`)))

		assert.Equal(t, []string{"ConfirmStock", "RejectStock", "MarkOrderAsPaid", "FailPayment", "ExpireGracePeriod"}, orders.calls)
		assert.Equal(t, []model.RejectedItem{{MenuItemID: 5, MenuItemName: "A", RequestedQuantity: 2, AvailableQuantity: 1}}, orders.rejected)
		assert.True(t, decimal.RequireFromString("20").Equal(orders.paid.Amount))
		assert.Equal(t, "tx-1", orders.paid.TransactionID)
	})

	t.Run("Domain errors are returned", func(t *testing.T) {
		orders := &recordingOrderService{err: model.ErrIllegalTransition}
		err := NewRouter(orders).Route(ctx, StockConfirmed, []byte(`{"orderId":1}`))
		assert.ErrorIs(t, err, model.ErrIllegalTransition)
	})

	t.Run("Fail on malformed payload", func(t *testing.T) {
		orders := &recordingOrderService{}
		err := NewRouter(orders).Route(ctx, PaymentFailed, []byte(`{"orderId":`))
		assert.ErrorIs(t, err, ErrMalformedEvent)
		assert.Empty(t, orders.calls)
	})

	t.Run("Fail on unknown kind", func(t *testing.T) {
		err := NewRouter(&recordingOrderService{}).Route(ctx, EventKind(99), []byte(`{}`))
		assert.ErrorIs(t, err, ErrUnknownEventKind)
	})
}
