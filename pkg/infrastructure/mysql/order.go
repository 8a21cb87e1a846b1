package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"order/pkg/domain/model"
)

type orderRow struct {
	ID              int64           `db:"id"`
	RequestID       string          `db:"request_id"`
	BuyerID         string          `db:"buyer_id"`
	BuyerEmail      string          `db:"buyer_email"`
	BuyerName       string          `db:"buyer_name"`
	Status          string          `db:"status"`
	Street          string          `db:"street"`
	City            string          `db:"city"`
	State           string          `db:"state"`
	Country         string          `db:"country"`
	ZipCode         string          `db:"zip_code"`
	CardType        string          `db:"card_type"`
	CardHolderName  string          `db:"card_holder_name"`
	CardNumberLast4 string          `db:"card_number_last4"`
	CardExpiration  string          `db:"card_expiration"`
	TotalPrice      decimal.Decimal `db:"total_price"`
	Currency        string          `db:"currency"`
	Description     string          `db:"description"`
	Version         int             `db:"version"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

type itemRow struct {
	OrderID    int64           `db:"order_id"`
	Position   int             `db:"position"`
	MenuItemID int64           `db:"menu_item_id"`
	Name       string          `db:"name"`
	ImageURL   string          `db:"image_url"`
	UnitPrice  decimal.Decimal `db:"unit_price"`
	Quantity   int             `db:"quantity"`
}

const orderColumns = `id, request_id, buyer_id, buyer_email, buyer_name, status,
	street, city, state, country, zip_code,
	card_type, card_holder_name, card_number_last4, card_expiration,
	total_price, currency, description, version, created_at, updated_at`

func NewOrderRepository(db *sqlx.DB) model.OrderRepository {
	return &orderRepository{db: db}
}

type orderRepository struct {
	db *sqlx.DB
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	row := toOrderRow(order)
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, `
			INSERT INTO orders (request_id, buyer_id, buyer_email, buyer_name, status,
				street, city, state, country, zip_code,
				card_type, card_holder_name, card_number_last4, card_expiration,
				total_price, currency, description, version, created_at, updated_at)
			VALUES (:request_id, :buyer_id, :buyer_email, :buyer_name, :status,
				:street, :city, :state, :country, :zip_code,
				:card_type, :card_holder_name, :card_number_last4, :card_expiration,
				:total_price, :currency, :description, :version, :created_at, :updated_at)`, row)
		if isDuplicateEntry(err) {
			return model.ErrDuplicateRequest
		}
		if err != nil {
			return errors.Wrap(err, "insert order")
		}

		id, err := result.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "read order id")
		}
		if err := insertItems(ctx, tx, id, order.Items); err != nil {
			return err
		}
		order.ID = id
		return nil
	})
}

func (r *orderRepository) Find(ctx context.Context, id int64) (*model.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

func (r *orderRepository) FindByRequestID(ctx context.Context, requestID string) (*model.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE request_id = ?`, requestID)
}

func (r *orderRepository) findOne(ctx context.Context, query string, arg interface{}) (*model.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}

	items, err := r.loadItems(ctx, []int64{row.ID})
	if err != nil {
		return nil, err
	}
	order := toOrder(row, items[row.ID])
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, spec model.ListSpec) ([]model.Order, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if spec.BuyerID != "" {
		conditions = append(conditions, "buyer_id = ?")
		args = append(args, spec.BuyerID)
	}
	if spec.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(spec.Status))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders`+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	var rows []orderRow
	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &rows, query, append(args, spec.Limit, spec.Offset)...); err != nil {
		return nil, 0, errors.Wrap(err, "select orders")
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	orders := make([]model.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, toOrder(row, items[row.ID]))
	}
	return orders, total, nil
}

func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	row := toOrderRow(order)
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = ?, description = ?, total_price = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?`,
			row.Status, row.Description, row.TotalPrice, row.Version, row.UpdatedAt,
			row.ID, row.Version-1)
		if err != nil {
			return errors.Wrap(err, "update order")
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "read affected rows")
		}
		if affected == 0 {
			return r.missingOrStale(ctx, tx, order.ID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID); err != nil {
			return errors.Wrap(err, "delete order items")
		}
		return insertItems(ctx, tx, order.ID, order.Items)
	})
}

func (r *orderRepository) missingOrStale(ctx context.Context, tx *sqlx.Tx, id int64) error {
	var exists bool
	err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = ?)`, id)
	if err != nil {
		return errors.Wrap(err, "check order existence")
	}
	if !exists {
		return model.ErrOrderNotFound
	}
	return model.ErrOptimisticLock
}

func (r *orderRepository) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]model.Item, error) {
	items := make(map[int64][]model.Item, len(orderIDs))
	if len(orderIDs) == 0 {
		return items, nil
	}

	query, args, err := sqlx.In(`
		SELECT order_id, position, menu_item_id, name, image_url, unit_price, quantity
		FROM order_items WHERE order_id IN (?) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "build order items query")
	}
	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "select order items")
	}
	for _, row := range rows {
		items[row.OrderID] = append(items[row.OrderID], model.Item{
			MenuItemID: row.MenuItemID,
			Name:       row.Name,
			ImageURL:   row.ImageURL,
			UnitPrice:  row.UnitPrice,
			Quantity:   row.Quantity,
		})
	}
	return items, nil
}

func insertItems(ctx context.Context, tx *sqlx.Tx, orderID int64, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]itemRow, 0, len(items))
	for i, item := range items {
		rows = append(rows, itemRow{
			OrderID:    orderID,
			Position:   i,
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			ImageURL:   item.ImageURL,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO order_items (order_id, position, menu_item_id, name, image_url, unit_price, quantity)
		VALUES (:order_id, :position, :menu_item_id, :name, :image_url, :unit_price, :quantity)`, rows)
	return errors.Wrap(err, "insert order items")
}

func toOrderRow(order *model.Order) orderRow {
	row := orderRow{
		ID:          order.ID,
		RequestID:   order.RequestID,
		BuyerID:     order.BuyerID,
		BuyerEmail:  order.BuyerEmail,
		BuyerName:   order.BuyerName,
		Status:      string(order.Status),
		Street:      order.DeliveryAddress.Street,
		City:        order.DeliveryAddress.City,
		State:       order.DeliveryAddress.State,
		Country:     order.DeliveryAddress.Country,
		ZipCode:     order.DeliveryAddress.ZipCode,
		TotalPrice:  order.TotalPrice,
		Currency:    order.Currency,
		Description: order.Description,
		Version:     order.Version,
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
	}
	if pm := order.PaymentMethod; pm != nil {
		row.CardType = pm.CardType
		row.CardHolderName = pm.CardHolderName
		row.CardNumberLast4 = pm.CardNumberLast4
		row.CardExpiration = pm.Expiration
	}
	return row
}

func toOrder(row orderRow, items []model.Item) model.Order {
	order := model.Order{
		ID:         row.ID,
		RequestID:  row.RequestID,
		BuyerID:    row.BuyerID,
		BuyerEmail: row.BuyerEmail,
		BuyerName:  row.BuyerName,
		Status:     model.OrderStatus(row.Status),
		Items:      items,
		DeliveryAddress: model.Address{
			Street:  row.Street,
			City:    row.City,
			State:   row.State,
			Country: row.Country,
			ZipCode: row.ZipCode,
		},
		TotalPrice:  row.TotalPrice,
		Currency:    row.Currency,
		Description: row.Description,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.CardNumberLast4 != "" {
		order.PaymentMethod = &model.PaymentMethod{
			CardType:        row.CardType,
			CardHolderName:  row.CardHolderName,
			CardNumberLast4: row.CardNumberLast4,
			Expiration:      row.CardExpiration,
		}
	}
	return order
}
