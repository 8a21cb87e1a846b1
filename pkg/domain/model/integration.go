package model

import "github.com/shopspring/decimal"

// Events produced by the inventory and payment services.

type StockConfirmedEvent struct {
	OrderID int64 `json:"orderId"`
}

type RejectedItem struct {
	MenuItemID        int64  `json:"menuItemId"`
	MenuItemName      string `json:"menuItemName"`
	RequestedQuantity int    `json:"requestedQuantity"`
	AvailableQuantity int    `json:"availableQuantity"`
}

type StockRejectedEvent struct {
	OrderID       int64          `json:"orderId"`
	RejectedItems []RejectedItem `json:"rejectedItems"`
}

type PaymentSucceededEvent struct {
	OrderID       int64           `json:"orderId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transactionId"`
}

type PaymentFailedEvent struct {
	OrderID     int64  `json:"orderId"`
	Reason      string `json:"reason"`
	FailureCode string `json:"failureCode"`
}

type GracePeriodExpiredEvent struct {
	OrderID int64 `json:"orderId"`
}
