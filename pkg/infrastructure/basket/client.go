package basket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"order/pkg/domain/model"
)

type basketResponse struct {
	BuyerID string         `json:"buyerId"`
	Items   []itemResponse `json:"items"`
}

type itemResponse struct {
	MenuItemID int64           `json:"menuItemId"`
	Name       string          `json:"name"`
	ImageURL   string          `json:"imageUrl"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetBasket returns nil when the buyer has no basket.
func (c *Client) GetBasket(ctx context.Context, buyerID, authToken string) (*model.Basket, error) {
	endpoint := fmt.Sprintf("%s/basket/%s", c.baseURL, url.PathEscape(buyerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build basket request")
	}
	req.Header.Set("Accept", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request basket")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("basket service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload basketResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode basket")
	}

	basket := &model.Basket{BuyerID: buyerID, Items: make([]model.BasketItem, 0, len(payload.Items))}
	for _, item := range payload.Items {
		basket.Items = append(basket.Items, model.BasketItem{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			ImageURL:   item.ImageURL,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}
	return basket, nil
}
