package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order/pkg/domain/model"
	"order/pkg/domain/service"
	"order/pkg/infrastructure/metrics"
)

type stubOrderService struct {
	service.OrderService
	err       error
	created   service.CreateOrderRequest
	cancelled service.CancelOrderRequest
	listed    model.ListSpec
}

func sampleOrder() *model.Order {
	return &model.Order{
		ID:        7,
		RequestID: "req-1",
		BuyerID:   "buyer-1",
		Status:    model.Submitted,
		Items: []model.Item{
			{MenuItemID: 1, Name: "Espresso", UnitPrice: decimal.RequireFromString("10"), Quantity: 2},
		},
		PaymentMethod: &model.PaymentMethod{CardType: "Visa", CardNumberLast4: "1111"},
		TotalPrice:    decimal.RequireFromString("20"),
		Currency:      "USD",
		Version:       1,
		CreatedAt:     time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC),
	}
}

func (s *stubOrderService) CreateOrder(_ context.Context, req service.CreateOrderRequest) (*model.Order, error) {
	s.created = req
	return sampleOrder(), s.err
}

func (s *stubOrderService) CancelOrder(_ context.Context, req service.CancelOrderRequest) (*model.Order, error) {
	s.cancelled = req
	if s.err != nil {
		return nil, s.err
	}
	return sampleOrder(), nil
}

func (s *stubOrderService) GetOrder(context.Context, int64, string) (*model.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return sampleOrder(), nil
}

func (s *stubOrderService) ShipOrder(context.Context, service.ShipOrderRequest) (*model.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return sampleOrder(), nil
}

func (s *stubOrderService) ListOrders(_ context.Context, spec model.ListSpec) (*service.OrderPage, error) {
	s.listed = spec
	return &service.OrderPage{Orders: []model.Order{*sampleOrder()}, TotalCount: 1, Offset: spec.Offset, Limit: 20}, s.err
}

func setup(t *testing.T, orders *stubOrderService) (http.Handler, *metrics.Metrics) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	m := metrics.New(prometheus.NewRegistry())
	return Router(orders, logger, m, nil), m
}

func do(handler http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderHandler(t *testing.T) {
	orders := &stubOrderService{}
	router, m := setup(t, orders)

	rec := do(router, http.MethodPost, "/api/v1/orders", `{
		"deliveryAddress": {"street":"1 Main St","city":"Springfield","state":"IL","country":"US","zipCode":"62701"},
		"paymentDetails": {"cardNumber":"4111111111111111","cardHolderName":"Alice","cardSecurityNumber":"123","cardType":"Visa","expiration":"12/30"}
	}`, map[string]string{
		"X-Request-Id":  "req-1",
		"X-Buyer-Id":    "buyer-1",
		"X-Buyer-Email": "alice@example.com",
		"Authorization": "Bearer token",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "req-1", orders.created.RequestID)
	assert.Equal(t, "buyer-1", orders.created.BuyerID)
	assert.Equal(t, "alice@example.com", orders.created.BuyerEmail)
	assert.Equal(t, "Bearer token", orders.created.AuthToken)
	assert.Equal(t, "Springfield", orders.created.DeliveryAddress.City)
	assert.Equal(t, "123", orders.created.PaymentDetails.CardSecurityNumber)

	var body orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(7), body.ID)
	assert.Equal(t, "20.00", body.TotalPrice)
	assert.Equal(t, "Submitted", body.Status)
	require.NotNil(t, body.PaymentMethod)
	assert.Equal(t, "1111", body.PaymentMethod.CardNumberLast4)
	assert.NotContains(t, rec.Body.String(), "4111111111111111")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST /api/v1/orders", "201")))
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{"not found", model.ErrOrderNotFound, http.StatusNotFound, false},
		{"forbidden", model.ErrForbidden, http.StatusForbidden, false},
		{"illegal transition", errors.Wrap(model.ErrIllegalTransition, "cannot ship"), http.StatusConflict, false},
		{"request id conflict", model.ErrRequestIDConflict, http.StatusConflict, false},
		{"optimistic lock", model.ErrOptimisticLock, http.StatusConflict, true},
		{"missing request id", model.ErrRequestIDRequired, http.StatusBadRequest, false},
		{"unexpected", errors.New("db is down"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, _ := setup(t, &stubOrderService{err: tc.err})

			rec := do(router, http.MethodPost, "/api/v1/orders/7/cancel", `{"reason":"x"}`,
				map[string]string{"X-Request-Id": "req-2", "X-Buyer-Id": "buyer-1"})

			assert.Equal(t, tc.status, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.retryable, body.Retryable)
			assert.NotEmpty(t, body.Error)
			assert.NotContains(t, body.Error, "db is down")
		})
	}
}

func TestRequestValidation(t *testing.T) {
	router, _ := setup(t, &stubOrderService{})

	rec := do(router, http.MethodGet, "/api/v1/orders/7", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/orders/abc", "", map[string]string{"X-Buyer-Id": "buyer-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/orders", "{", map[string]string{"X-Buyer-Id": "buyer-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/admin/orders?status=Lost", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/admin/orders?limit=ten", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelWithoutBody(t *testing.T) {
	orders := &stubOrderService{}
	router, _ := setup(t, orders)

	rec := do(router, http.MethodPost, "/api/v1/orders/7/cancel", "",
		map[string]string{"X-Request-Id": "req-2", "X-Buyer-Id": "buyer-1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), orders.cancelled.OrderID)
	assert.Equal(t, "buyer-1", orders.cancelled.BuyerID)
}

func TestAdminListOrders(t *testing.T) {
	orders := &stubOrderService{}
	router, _ := setup(t, orders)

	rec := do(router, http.MethodGet, "/api/v1/admin/orders?status=Paid&buyerId=buyer-1&offset=5", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ListSpec{BuyerID: "buyer-1", Status: model.Paid, Offset: 5}, orders.listed)
	var page orderPageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.TotalCount)
	assert.Len(t, page.Orders, 1)
}

func TestHealthz(t *testing.T) {
	router, _ := setup(t, &stubOrderService{})

	rec := do(router, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
