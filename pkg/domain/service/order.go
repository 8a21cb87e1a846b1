package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"order/pkg/domain/model"
)

type Event interface {
	Type() string
}

type EventDispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

type GracePeriodScheduler interface {
	// Schedule must tolerate being called again for the same order.
	Schedule(ctx context.Context, orderID int64, fireAt time.Time) error
}

type CreateOrderRequest struct {
	RequestID       string
	BuyerID         string
	BuyerEmail      string
	BuyerName       string
	AuthToken       string
	DeliveryAddress model.Address
	PaymentDetails  PaymentDetails
}

type CancelOrderRequest struct {
	RequestID string
	OrderID   int64
	// BuyerID is empty for administrative cancellation.
	BuyerID string
	Reason  string
}

type ShipOrderRequest struct {
	RequestID string
	OrderID   int64
}

type OrderPage struct {
	Orders     []model.Order
	TotalCount int
	Offset     int
	Limit      int
}

type OrderService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error)
	CancelOrder(ctx context.Context, req CancelOrderRequest) (*model.Order, error)
	ShipOrder(ctx context.Context, req ShipOrderRequest) (*model.Order, error)

	ExpireGracePeriod(ctx context.Context, orderID int64) error
	ConfirmStock(ctx context.Context, orderID int64) (*model.Order, error)
	RejectStock(ctx context.Context, orderID int64, rejected []model.RejectedItem) (*model.Order, error)
	MarkOrderAsPaid(ctx context.Context, event model.PaymentSucceededEvent) (*model.Order, error)
	FailPayment(ctx context.Context, event model.PaymentFailedEvent) (*model.Order, error)

	GetOrder(ctx context.Context, orderID int64, buyerID string) (*model.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID string, offset, limit int) (*OrderPage, error)
	ListOrders(ctx context.Context, spec model.ListSpec) (*OrderPage, error)
}

type Config struct {
	GracePeriod time.Duration
	Currency    string
	// Now defaults to time.Now.
	Now func() time.Time
}

type Dependencies struct {
	Orders     model.OrderRepository
	Requests   model.ProcessedRequestRepository
	Basket     model.BasketProvider
	Scheduler  GracePeriodScheduler
	Dispatcher EventDispatcher
	Logger     logrus.FieldLogger
}

func NewOrderService(deps Dependencies, config Config) OrderService {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Currency == "" {
		config.Currency = "USD"
	}
	return &orderService{
		repo:       deps.Orders,
		requests:   deps.Requests,
		basket:     deps.Basket,
		scheduler:  deps.Scheduler,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		config:     config,
	}
}

type orderService struct {
	repo       model.OrderRepository
	requests   model.ProcessedRequestRepository
	basket     model.BasketProvider
	scheduler  GracePeriodScheduler
	dispatcher EventDispatcher
	logger     logrus.FieldLogger
	config     Config
}

func (s *orderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	order, err := ExecuteIdempotent(ctx, s.requests, req.RequestID, model.CreateOrderCommand,
		func(ctx context.Context) (*model.Order, error) {
			return s.createOrder(ctx, req)
		})
	if err != nil {
		return nil, err
	}
	if order.BuyerID != req.BuyerID {
		return nil, requestIDConflict(req.RequestID)
	}
	return order, nil
}

func (s *orderService) createOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	// An order may already exist when the ledger write of a previous attempt failed.
	existing, err := s.repo.FindByRequestID(ctx, req.RequestID)
	if err == nil {
		if existing.BuyerID != req.BuyerID {
			return nil, requestIDConflict(req.RequestID)
		}
		return existing, s.scheduleGracePeriod(ctx, existing)
	}
	if !errors.Is(err, model.ErrOrderNotFound) {
		return nil, errors.Wrapf(err, "find order by request %s", req.RequestID)
	}

	if err := validateAddress(req.DeliveryAddress); err != nil {
		return nil, err
	}
	paymentMethod, err := paymentMethodFrom(req.PaymentDetails, s.now())
	if err != nil {
		return nil, err
	}

	basket, err := s.basket.GetBasket(ctx, req.BuyerID, req.AuthToken)
	if err != nil {
		return nil, errors.Wrapf(err, "get basket of buyer %s", req.BuyerID)
	}
	items := itemsFromBasket(basket)
	if len(items) == 0 {
		return nil, model.ErrEmptyBasket
	}

	now := s.now().UTC()
	order := &model.Order{
		RequestID:       req.RequestID,
		BuyerID:         req.BuyerID,
		BuyerEmail:      req.BuyerEmail,
		BuyerName:       req.BuyerName,
		Status:          model.Submitted,
		Items:           items,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   paymentMethod,
		Currency:        s.config.Currency,
		Description:     "Order submitted",
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.RecalculateTotal()

	if err := s.repo.Create(ctx, order); err != nil {
		if errors.Is(err, model.ErrDuplicateRequest) {
			existing, findErr := s.repo.FindByRequestID(ctx, req.RequestID)
			if findErr != nil {
				return nil, errors.Wrapf(findErr, "find order by request %s", req.RequestID)
			}
			return existing, nil
		}
		return nil, errors.Wrap(err, "create order")
	}

	s.dispatchEvents(ctx, model.NewOrderCreated(order))

	if err := s.scheduleGracePeriod(ctx, order); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"request_id": order.RequestID,
		"buyer_id":   order.BuyerID,
		"total":      order.TotalPrice.StringFixed(2),
	}).Info("order submitted")
	return order, nil
}

func (s *orderService) scheduleGracePeriod(ctx context.Context, order *model.Order) error {
	if order.Status != model.Submitted {
		return nil
	}
	fireAt := order.CreatedAt.Add(s.config.GracePeriod)
	if err := s.scheduler.Schedule(ctx, order.ID, fireAt); err != nil {
		return errors.Wrapf(err, "schedule grace period of order %d", order.ID)
	}
	return nil
}

func (s *orderService) CancelOrder(ctx context.Context, req CancelOrderRequest) (*model.Order, error) {
	order, err := ExecuteIdempotent(ctx, s.requests, req.RequestID, model.CancelOrderCommand,
		func(ctx context.Context) (*model.Order, error) {
			order, err := s.repo.Find(ctx, req.OrderID)
			if err != nil {
				return nil, err
			}
			if req.BuyerID != "" && order.BuyerID != req.BuyerID {
				return nil, model.ErrForbidden
			}
			if order.Status == model.Cancelled {
				return order, nil
			}

			oldStatus := order.Status
			switch oldStatus {
			case model.Submitted, model.AwaitingValidation, model.StockConfirmed:
			default:
				return nil, illegalTransition(order, "cancel")
			}

			reason := strings.TrimSpace(req.Reason)
			if reason == "" {
				reason = "cancelled on request"
			}
			order.Status = model.Cancelled
			order.Description = "Order cancelled: " + reason
			if err := s.updateOrder(ctx, order); err != nil {
				return nil, err
			}

			events := []Event{model.NewOrderCancelled(order, reason)}
			if oldStatus == model.AwaitingValidation || oldStatus == model.StockConfirmed {
				events = append(events, model.NewStockReturned(order))
			}
			events = append(events, model.NewOrderStatusChanged(order, oldStatus))
			s.dispatchEvents(ctx, events...)
			return order, nil
		})
	if err != nil {
		return nil, err
	}
	if order.ID != req.OrderID || (req.BuyerID != "" && order.BuyerID != req.BuyerID) {
		return nil, requestIDConflict(req.RequestID)
	}
	return order, nil
}

func (s *orderService) ShipOrder(ctx context.Context, req ShipOrderRequest) (*model.Order, error) {
	order, err := ExecuteIdempotent(ctx, s.requests, req.RequestID, model.ShipOrderCommand,
		func(ctx context.Context) (*model.Order, error) {
			order, err := s.repo.Find(ctx, req.OrderID)
			if err != nil {
				return nil, err
			}
			if order.Status == model.Shipped {
				return order, nil
			}
			if order.Status != model.Paid {
				return nil, illegalTransition(order, "ship")
			}

			order.Status = model.Shipped
			order.Description = "Order shipped"
			if err := s.updateOrder(ctx, order); err != nil {
				return nil, err
			}

			s.dispatchEvents(ctx, model.NewOrderStatusChanged(order, model.Paid))
			return order, nil
		})
	if err != nil {
		return nil, err
	}
	if order.ID != req.OrderID {
		return nil, requestIDConflict(req.RequestID)
	}
	return order, nil
}

// ExpireGracePeriod moves a still-submitted order to stock validation.
// Orders that already left Submitted are ignored.
func (s *orderService) ExpireGracePeriod(ctx context.Context, orderID int64) error {
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.Submitted {
		s.logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"status":   order.Status,
		}).Debug("grace period expired for order that is no longer submitted")
		return nil
	}

	order.Status = model.AwaitingValidation
	order.Description = "Grace period elapsed, awaiting stock validation"
	if err := s.updateOrder(ctx, order); err != nil {
		return err
	}

	s.dispatchEvents(ctx,
		model.NewOrderAwaitingValidation(order),
		model.NewOrderStatusChanged(order, model.Submitted),
	)
	return nil
}

func (s *orderService) ConfirmStock(ctx context.Context, orderID int64) (*model.Order, error) {
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.AwaitingValidation {
		return nil, illegalTransition(order, "confirm stock of")
	}

	order.Status = model.StockConfirmed
	order.Description = "Stock confirmed for all items"
	if err := s.updateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.dispatchEvents(ctx, model.NewOrderStatusChanged(order, model.AwaitingValidation))
	return order, nil
}

func (s *orderService) RejectStock(ctx context.Context, orderID int64, rejected []model.RejectedItem) (*model.Order, error) {
	if len(rejected) == 0 {
		return nil, errors.Wrap(model.ErrInvalidRejection, "no rejected items")
	}
	for _, item := range rejected {
		if item.AvailableQuantity < 0 {
			return nil, errors.Wrapf(model.ErrInvalidRejection, "negative available quantity for menu item %d", item.MenuItemID)
		}
	}

	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.AwaitingValidation {
		return nil, illegalTransition(order, "reject stock of")
	}

	adjustment := applyRejection(order.Items, rejected)

	if len(adjustment.items) == 0 {
		reason := "no stock available for " + strings.Join(adjustment.removed, ", ")
		order.Status = model.Cancelled
		order.Description = "Order cancelled: " + reason
		if err := s.updateOrder(ctx, order); err != nil {
			return nil, err
		}
		s.dispatchEvents(ctx,
			model.NewOrderCancelled(order, reason),
			model.NewOrderStatusChanged(order, model.AwaitingValidation),
		)
		return order, nil
	}

	order.Items = adjustment.items
	order.RecalculateTotal()
	order.Status = model.StockConfirmed
	order.Description = adjustment.describe()
	if err := s.updateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.dispatchEvents(ctx, model.NewOrderStatusChanged(order, model.AwaitingValidation))
	return order, nil
}

func (s *orderService) MarkOrderAsPaid(ctx context.Context, event model.PaymentSucceededEvent) (*model.Order, error) {
	order, err := s.repo.Find(ctx, event.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StockConfirmed {
		return nil, illegalTransition(order, "mark as paid")
	}
	if !event.Amount.Equal(order.TotalPrice) || (event.Currency != "" && event.Currency != order.Currency) {
		s.logger.WithFields(logrus.Fields{
			"order_id":       order.ID,
			"order_total":    order.TotalPrice.StringFixed(2),
			"order_currency": order.Currency,
			"paid_amount":    event.Amount.StringFixed(2),
			"paid_currency":  event.Currency,
		}).Warn("paid amount differs from order total")
	}

	order.Status = model.Paid
	order.Description = fmt.Sprintf("Payment succeeded (transaction %s)", event.TransactionID)
	if err := s.updateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.dispatchEvents(ctx, model.NewOrderStatusChanged(order, model.StockConfirmed))
	return order, nil
}

func (s *orderService) FailPayment(ctx context.Context, event model.PaymentFailedEvent) (*model.Order, error) {
	order, err := s.repo.Find(ctx, event.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StockConfirmed {
		return nil, illegalTransition(order, "fail payment of")
	}

	reason := "payment failed: " + event.Reason
	if event.FailureCode != "" {
		reason += " (" + event.FailureCode + ")"
	}
	order.Status = model.Cancelled
	order.Description = "Order cancelled: " + reason
	if err := s.updateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.dispatchEvents(ctx,
		model.NewOrderCancelled(order, reason),
		model.NewStockReturned(order),
		model.NewOrderStatusChanged(order, model.StockConfirmed),
	)
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int64, buyerID string) (*model.Order, error) {
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if buyerID != "" && order.BuyerID != buyerID {
		return nil, model.ErrForbidden
	}
	return order, nil
}

func (s *orderService) ListBuyerOrders(ctx context.Context, buyerID string, offset, limit int) (*OrderPage, error) {
	return s.ListOrders(ctx, model.ListSpec{BuyerID: buyerID, Offset: offset, Limit: limit})
}

func (s *orderService) ListOrders(ctx context.Context, spec model.ListSpec) (*OrderPage, error) {
	if spec.Limit <= 0 {
		spec.Limit = 20
	}
	if spec.Limit > 100 {
		spec.Limit = 100
	}
	if spec.Offset < 0 {
		spec.Offset = 0
	}

	orders, total, err := s.repo.List(ctx, spec)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return &OrderPage{Orders: orders, TotalCount: total, Offset: spec.Offset, Limit: spec.Limit}, nil
}

func (s *orderService) updateOrder(ctx context.Context, order *model.Order) error {
	// A handler that outlived its deadline must not commit.
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "update order %d", order.ID)
	}
	order.Version++
	order.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, order)
}

// dispatchEvents publishes after the state change is stored; failures are only logged.
func (s *orderService) dispatchEvents(ctx context.Context, events ...Event) {
	for _, event := range events {
		if err := s.dispatcher.Dispatch(ctx, event); err != nil {
			s.logger.WithError(err).WithField("event_type", event.Type()).Error("failed to dispatch event")
		}
	}
}

func (s *orderService) now() time.Time {
	return s.config.Now()
}

// requestIDConflict is returned when a request id is reused for another order or buyer.
func requestIDConflict(requestID string) error {
	return errors.Wrapf(model.ErrRequestIDConflict, "request %s belongs to another caller", requestID)
}

func illegalTransition(order *model.Order, action string) error {
	return errors.Wrapf(model.ErrIllegalTransition, "cannot %s order %d in status %s", action, order.ID, order.Status)
}

// priceScale matches the DECIMAL(14, 2) money columns.
const priceScale = 2

func itemsFromBasket(basket *model.Basket) []model.Item {
	if basket == nil {
		return nil
	}
	items := make([]model.Item, 0, len(basket.Items))
	for _, item := range basket.Items {
		if item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			continue
		}
		items = append(items, model.Item{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			ImageURL:   item.ImageURL,
			UnitPrice:  item.UnitPrice.Round(priceScale),
			Quantity:   item.Quantity,
		})
	}
	return items
}
