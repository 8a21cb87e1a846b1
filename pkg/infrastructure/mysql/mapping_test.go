package mysql

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order/pkg/domain/model"
)

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN("order:secret@tcp(db:3306)/order")
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, time.UTC, parsed.Loc)
	assert.Equal(t, "order", parsed.DBName)

	_, err = normalizeDSN("not a dsn")
	assert.Error(t, err)
}

func TestIsDuplicateEntry(t *testing.T) {
	assert.True(t, isDuplicateEntry(errors.Wrap(&mysql.MySQLError{Number: 1062}, "insert")))
	assert.False(t, isDuplicateEntry(&mysql.MySQLError{Number: 1213}))
	assert.False(t, isDuplicateEntry(nil))
}

func TestOrderRowMapping(t *testing.T) {
	order := &model.Order{
		ID:        3,
		RequestID: "req-1",
		BuyerID:   "buyer-1",
		Status:    model.StockConfirmed,
		DeliveryAddress: model.Address{
			Street: "1 Main St", City: "Springfield", State: "IL", Country: "US", ZipCode: "62701",
		},
		PaymentMethod: &model.PaymentMethod{CardType: "Visa", CardHolderName: "Alice", CardNumberLast4: "1111", Expiration: "12/30"},
		TotalPrice:    decimal.RequireFromString("17.50"),
		Currency:      "USD",
		Version:       3,
	}

	row := toOrderRow(order)
	assert.Equal(t, "StockConfirmed", row.Status)
	assert.Equal(t, "1111", row.CardNumberLast4)

	restored := toOrder(row, nil)
	assert.Equal(t, order.DeliveryAddress, restored.DeliveryAddress)
	assert.Equal(t, order.PaymentMethod, restored.PaymentMethod)
	assert.Equal(t, model.StockConfirmed, restored.Status)

	row.CardNumberLast4 = ""
	assert.Nil(t, toOrder(row, nil).PaymentMethod)
}
