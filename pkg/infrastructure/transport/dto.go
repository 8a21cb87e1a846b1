package transport

import (
	"time"

	"order/pkg/domain/model"
	"order/pkg/domain/service"
)

type addressDTO struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode"`
}

type paymentDetailsDTO struct {
	CardNumber         string `json:"cardNumber"`
	CardHolderName     string `json:"cardHolderName"`
	CardSecurityNumber string `json:"cardSecurityNumber"`
	CardType           string `json:"cardType"`
	Expiration         string `json:"expiration"`
}

type createOrderRequest struct {
	DeliveryAddress addressDTO        `json:"deliveryAddress"`
	PaymentDetails  paymentDetailsDTO `json:"paymentDetails"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type stockRejectionRequest struct {
	RejectedItems []model.RejectedItem `json:"rejectedItems"`
}

type itemDTO struct {
	MenuItemID int64  `json:"menuItemId"`
	Name       string `json:"name"`
	ImageURL   string `json:"imageUrl"`
	UnitPrice  string `json:"unitPrice"`
	Quantity   int    `json:"quantity"`
}

type paymentMethodDTO struct {
	CardType        string `json:"cardType"`
	CardHolderName  string `json:"cardHolderName"`
	CardNumberLast4 string `json:"cardNumberLast4"`
	Expiration      string `json:"expiration"`
}

type orderResponse struct {
	ID              int64             `json:"id"`
	RequestID       string            `json:"requestId"`
	BuyerID         string            `json:"buyerId"`
	BuyerEmail      string            `json:"buyerEmail"`
	BuyerName       string            `json:"buyerName"`
	Status          string            `json:"status"`
	Items           []itemDTO         `json:"items"`
	DeliveryAddress addressDTO        `json:"deliveryAddress"`
	PaymentMethod   *paymentMethodDTO `json:"paymentMethod,omitempty"`
	TotalPrice      string            `json:"totalPrice"`
	Currency        string            `json:"currency"`
	Description     string            `json:"description"`
	Version         int               `json:"version"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

type orderPageResponse struct {
	Orders     []orderResponse `json:"orders"`
	TotalCount int             `json:"totalCount"`
	Offset     int             `json:"offset"`
	Limit      int             `json:"limit"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (a addressDTO) toModel() model.Address {
	return model.Address{Street: a.Street, City: a.City, State: a.State, Country: a.Country, ZipCode: a.ZipCode}
}

func (p paymentDetailsDTO) toService() service.PaymentDetails {
	return service.PaymentDetails{
		CardNumber:         p.CardNumber,
		CardHolderName:     p.CardHolderName,
		CardSecurityNumber: p.CardSecurityNumber,
		CardType:           p.CardType,
		Expiration:         p.Expiration,
	}
}

func toOrderResponse(order *model.Order) orderResponse {
	items := make([]itemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, itemDTO{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			ImageURL:   item.ImageURL,
			UnitPrice:  item.UnitPrice.StringFixed(2),
			Quantity:   item.Quantity,
		})
	}
	resp := orderResponse{
		ID:         order.ID,
		RequestID:  order.RequestID,
		BuyerID:    order.BuyerID,
		BuyerEmail: order.BuyerEmail,
		BuyerName:  order.BuyerName,
		Status:     order.Status.String(),
		Items:      items,
		DeliveryAddress: addressDTO{
			Street:  order.DeliveryAddress.Street,
			City:    order.DeliveryAddress.City,
			State:   order.DeliveryAddress.State,
			Country: order.DeliveryAddress.Country,
			ZipCode: order.DeliveryAddress.ZipCode,
		},
		TotalPrice:  order.TotalPrice.StringFixed(2),
		Currency:    order.Currency,
		Description: order.Description,
		Version:     order.Version,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	if pm := order.PaymentMethod; pm != nil {
		resp.PaymentMethod = &paymentMethodDTO{
			CardType:        pm.CardType,
			CardHolderName:  pm.CardHolderName,
			CardNumberLast4: pm.CardNumberLast4,
			Expiration:      pm.Expiration,
		}
	}
	return resp
}

func toOrderPageResponse(page *service.OrderPage) orderPageResponse {
	orders := make([]orderResponse, 0, len(page.Orders))
	for i := range page.Orders {
		orders = append(orders, toOrderResponse(&page.Orders[i]))
	}
	return orderPageResponse{Orders: orders, TotalCount: page.TotalCount, Offset: page.Offset, Limit: page.Limit}
}
