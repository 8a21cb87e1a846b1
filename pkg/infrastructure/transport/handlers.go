package transport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"order/pkg/domain/model"
	"order/pkg/domain/service"
	"order/pkg/infrastructure/metrics"
)

const (
	headerRequestID  = "X-Request-Id"
	headerBuyerID    = "X-Buyer-Id"
	headerBuyerEmail = "X-Buyer-Email"
	headerBuyerName  = "X-Buyer-Name"
)

type Handler struct {
	orders service.OrderService
	logger logrus.FieldLogger
}

// Router serves the order API. metricsHandler is mounted on /metrics when not nil.
func Router(orders service.OrderService, logger logrus.FieldLogger, m *metrics.Metrics, metricsHandler http.Handler) http.Handler {
	handler := &Handler{orders: orders, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	s := r.PathPrefix("/api/v1").Subrouter()
	s.HandleFunc("/orders", handler.createOrder).Methods(http.MethodPost)
	s.HandleFunc("/orders", handler.listBuyerOrders).Methods(http.MethodGet)
	s.HandleFunc("/orders/{id}", handler.getOrder).Methods(http.MethodGet)
	s.HandleFunc("/orders/{id}/cancel", handler.cancelOrder).Methods(http.MethodPost)

	admin := s.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/orders", handler.listOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/ship", handler.shipOrder).Methods(http.MethodPost)
	admin.HandleFunc("/orders/{id}/stock-confirmation", handler.confirmStock).Methods(http.MethodPost)
	admin.HandleFunc("/orders/{id}/stock-rejection", handler.rejectStock).Methods(http.MethodPost)

	if m != nil {
		r.Use(metricsMiddleware(m))
	}
	return logMiddleware(logger, r)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	buyerID, err := buyerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body createOrderRequest
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), service.CreateOrderRequest{
		RequestID:       requestIDFrom(r),
		BuyerID:         buyerID,
		BuyerEmail:      strings.TrimSpace(r.Header.Get(headerBuyerEmail)),
		BuyerName:       strings.TrimSpace(r.Header.Get(headerBuyerName)),
		AuthToken:       r.Header.Get("Authorization"),
		DeliveryAddress: body.DeliveryAddress.toModel(),
		PaymentDetails:  body.PaymentDetails.toService(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	buyerID, err := buyerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orderID, err := orderIDFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID, buyerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) listBuyerOrders(w http.ResponseWriter, r *http.Request) {
	buyerID, err := buyerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, limit, err := pagingFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.orders.ListBuyerOrders(r.Context(), buyerID, offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderPageResponse(page))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	buyerID, err := buyerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orderID, err := orderIDFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body cancelOrderRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	order, err := h.orders.CancelOrder(r.Context(), service.CancelOrderRequest{
		RequestID: requestIDFrom(r),
		OrderID:   orderID,
		BuyerID:   buyerID,
		Reason:    body.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagingFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := model.OrderStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		h.writeError(w, r, errors.Wrapf(errInvalidStatus, "%q", status))
		return
	}

	page, err := h.orders.ListOrders(r.Context(), model.ListSpec{
		BuyerID: r.URL.Query().Get("buyerId"),
		Status:  status,
		Offset:  offset,
		Limit:   limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderPageResponse(page))
}

func (h *Handler) shipOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.ShipOrder(r.Context(), service.ShipOrderRequest{
		RequestID: requestIDFrom(r),
		OrderID:   orderID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) confirmStock(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.ConfirmStock(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) rejectStock(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body stockRejectionRequest
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.RejectStock(r.Context(), orderID, body.RejectedItems)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("write response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, retryable := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"url":    r.URL.String(),
		}).Error("request failed")
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, errorResponse{Error: message, Retryable: retryable})
}

func requestIDFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(headerRequestID))
}

func buyerFrom(r *http.Request) (string, error) {
	buyerID := strings.TrimSpace(r.Header.Get(headerBuyerID))
	if buyerID == "" {
		return "", errBuyerRequired
	}
	return buyerID, nil
}

func orderIDFrom(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidOrderID
	}
	return id, nil
}

func pagingFrom(r *http.Request) (offset, limit int, err error) {
	query := r.URL.Query()
	if value := query.Get("offset"); value != "" {
		if offset, err = strconv.Atoi(value); err != nil {
			return 0, 0, errInvalidPaging
		}
	}
	if value := query.Get("limit"); value != "" {
		if limit, err = strconv.Atoi(value); err != nil {
			return 0, 0, errInvalidPaging
		}
	}
	return offset, limit, nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(errInvalidBody, err.Error())
	}
	return nil
}
