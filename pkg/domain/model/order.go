package model

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrForbidden             = errors.New("order belongs to another buyer")
	ErrOptimisticLock        = errors.New("order has been modified by another transaction")
	ErrIllegalTransition     = errors.New("illegal order status transition")
	ErrEmptyBasket           = errors.New("basket is empty")
	ErrInvalidAddress        = errors.New("invalid delivery address")
	ErrInvalidPaymentDetails = errors.New("invalid payment details")
	ErrInvalidRejection      = errors.New("invalid stock rejection")
)

type OrderStatus string

const (
	Submitted          OrderStatus = "Submitted"
	AwaitingValidation OrderStatus = "AwaitingValidation"
	StockConfirmed     OrderStatus = "StockConfirmed"
	Paid               OrderStatus = "Paid"
	Shipped            OrderStatus = "Shipped"
	Cancelled          OrderStatus = "Cancelled"
)

func (s OrderStatus) String() string { return string(s) }

// IsTerminal reports whether no further transition may leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == Shipped || s == Cancelled
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case Submitted, AwaitingValidation, StockConfirmed, Paid, Shipped, Cancelled:
		return true
	default:
		return false
	}
}

type Order struct {
	ID              int64
	RequestID       string
	BuyerID         string
	BuyerEmail      string
	BuyerName       string
	Status          OrderStatus
	Items           []Item
	DeliveryAddress Address
	PaymentMethod   *PaymentMethod
	TotalPrice      decimal.Decimal
	Currency        string
	Description     string
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item is a snapshot of a menu item taken when the order was placed.
type Item struct {
	MenuItemID int64
	Name       string
	ImageURL   string
	UnitPrice  decimal.Decimal
	Quantity   int
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Address struct {
	Street  string
	City    string
	State   string
	Country string
	ZipCode string
}

// PaymentMethod keeps only what is safe to show back to the buyer.
type PaymentMethod struct {
	CardType        string
	CardHolderName  string
	CardNumberLast4 string
	Expiration      string
}

// RecalculateTotal keeps TotalPrice equal to the sum of item subtotals.
func (o *Order) RecalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	o.TotalPrice = total
}

// StockItems returns the menu item / quantity snapshot used by inventory.
func (o *Order) StockItems() []StockItem {
	items := make([]StockItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, StockItem{MenuItemID: item.MenuItemID, Quantity: item.Quantity})
	}
	return items
}

type ListSpec struct {
	BuyerID string
	Status  OrderStatus
	Offset  int
	Limit   int
}

type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	Find(ctx context.Context, id int64) (*Order, error)
	FindByRequestID(ctx context.Context, requestID string) (*Order, error)
	List(ctx context.Context, spec ListSpec) ([]Order, int, error)
	// Update stores the order only if the persisted version equals order.Version-1.
	Update(ctx context.Context, order *Order) error
}
