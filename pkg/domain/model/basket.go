package model

import (
	"context"

	"github.com/shopspring/decimal"
)

type Basket struct {
	BuyerID string
	Items   []BasketItem
}

type BasketItem struct {
	MenuItemID int64
	Name       string
	ImageURL   string
	UnitPrice  decimal.Decimal
	Quantity   int
}

// BasketProvider returns a nil basket when the buyer has none.
type BasketProvider interface {
	GetBasket(ctx context.Context, buyerID, authToken string) (*Basket, error)
}
