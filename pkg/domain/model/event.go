package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StockItem struct {
	MenuItemID int64 `json:"menuItemId"`
	Quantity   int   `json:"quantity"`
}

type EventItem struct {
	MenuItemID int64           `json:"menuItemId"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
}

// EventHeader is embedded in every event published by the order service.
type EventHeader struct {
	EventID    uuid.UUID `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
	OrderID    int64     `json:"orderId"`
	BuyerID    string    `json:"buyerId"`
}

func newEventHeader(order *Order) EventHeader {
	return EventHeader{
		EventID:    uuid.New(),
		OccurredAt: time.Now().UTC(),
		OrderID:    order.ID,
		BuyerID:    order.BuyerID,
	}
}

func (h EventHeader) ID() uuid.UUID { return h.EventID }

type OrderCreated struct {
	EventHeader
	BuyerEmail string          `json:"buyerEmail"`
	BuyerName  string          `json:"buyerName"`
	Items      []EventItem     `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Currency   string          `json:"currency"`
}

func (e OrderCreated) Type() string { return "OrderCreated" }

func NewOrderCreated(order *Order) OrderCreated {
	items := make([]EventItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, EventItem{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}
	return OrderCreated{
		EventHeader: newEventHeader(order),
		BuyerEmail:  order.BuyerEmail,
		BuyerName:   order.BuyerName,
		Items:       items,
		TotalPrice:  order.TotalPrice,
		Currency:    order.Currency,
	}
}

type OrderAwaitingValidation struct {
	EventHeader
	Items []StockItem `json:"items"`
}

func (e OrderAwaitingValidation) Type() string { return "OrderAwaitingValidation" }

func NewOrderAwaitingValidation(order *Order) OrderAwaitingValidation {
	return OrderAwaitingValidation{EventHeader: newEventHeader(order), Items: order.StockItems()}
}

type OrderStatusChanged struct {
	EventHeader
	BuyerEmail  string          `json:"buyerEmail"`
	OldStatus   OrderStatus     `json:"oldStatus"`
	NewStatus   OrderStatus     `json:"newStatus"`
	Description string          `json:"description"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Currency    string          `json:"currency"`
}

func (e OrderStatusChanged) Type() string { return "OrderStatusChanged" }

func NewOrderStatusChanged(order *Order, oldStatus OrderStatus) OrderStatusChanged {
	return OrderStatusChanged{
		EventHeader: newEventHeader(order),
		BuyerEmail:  order.BuyerEmail,
		OldStatus:   oldStatus,
		NewStatus:   order.Status,
		Description: order.Description,
		TotalPrice:  order.TotalPrice,
		Currency:    order.Currency,
	}
}

type OrderCancelled struct {
	EventHeader
	Reason string `json:"reason"`
}

func (e OrderCancelled) Type() string { return "OrderCancelled" }

func NewOrderCancelled(order *Order, reason string) OrderCancelled {
	return OrderCancelled{EventHeader: newEventHeader(order), Reason: reason}
}

// StockReturned compensates a reservation made while the order was being validated.
type StockReturned struct {
	EventHeader
	Items []StockItem `json:"items"`
}

func (e StockReturned) Type() string { return "StockReturned" }

func NewStockReturned(order *Order) StockReturned {
	return StockReturned{EventHeader: newEventHeader(order), Items: order.StockItems()}
}
