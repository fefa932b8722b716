package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/order"
	"github.com/shoplink/marketplace/internal/app/storage"
)

type orderRow struct {
	ID               int64           `db:"id"`
	UserID           int64           `db:"user_id"`
	ShopID           int64           `db:"shop_id"`
	Reference        string          `db:"reference"`
	DeliveryAddress  string          `db:"delivery_address"`
	DeliveryTimeSlot string          `db:"delivery_time_slot"`
	Status           string          `db:"status"`
	Subtotal         decimal.Decimal `db:"subtotal"`
	Discount         decimal.Decimal `db:"discount"`
	Total            decimal.Decimal `db:"total"`
	PromoID          sql.NullInt64   `db:"promo_id"`
	CreatedAt        time.Time       `db:"created_at"`
}

const orderColumns = `id, user_id, shop_id, reference, delivery_address,
	delivery_time_slot, status, subtotal, discount, total, promo_id, created_at`

func (r orderRow) toDomain() order.Order {
	o := order.Order{
		ID: r.ID, UserID: r.UserID, ShopID: r.ShopID, Reference: r.Reference,
		DeliveryAddress: r.DeliveryAddress, DeliveryTimeSlot: r.DeliveryTimeSlot,
		Status: order.Status(r.Status), Subtotal: r.Subtotal, Discount: r.Discount,
		Total: r.Total, CreatedAt: r.CreatedAt,
	}
	if r.PromoID.Valid {
		o.PromoID = &r.PromoID.Int64
	}
	return o
}

type orderItemRow struct {
	ID        int64           `db:"id"`
	OrderID   int64           `db:"order_id"`
	ProductID int64           `db:"product_id"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

func (s *Store) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO orders (user_id, shop_id, reference, delivery_address,
			delivery_time_slot, status, subtotal, discount, total, promo_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.UserID, o.ShopID, o.Reference, o.DeliveryAddress, o.DeliveryTimeSlot,
		string(o.Status), o.Subtotal, o.Discount, o.Total, nullInt(o.PromoID), o.CreatedAt)
	if err != nil {
		return order.Order{}, fmt.Errorf("insert order: %w", wrapErr(err))
	}
	o.ID, _ = res.LastInsertId()

	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		itemRes, err := s.ext.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?)
		`, o.ID, o.Items[i].ProductID, o.Items[i].Quantity, o.Items[i].UnitPrice)
		if err != nil {
			return order.Order{}, fmt.Errorf("insert order item: %w", wrapErr(err))
		}
		o.Items[i].ID, _ = itemRes.LastInsertId()
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (order.Order, error) {
	var row orderRow
	err := sqlx.GetContext(ctx, s.ext, &row, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order.Order{}, fault.NotFound("order", id)
		}
		return order.Order{}, fmt.Errorf("get order: %w", wrapErr(err))
	}
	o := row.toDomain()

	var itemRows []orderItemRow
	err = sqlx.SelectContext(ctx, s.ext, &itemRows, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items WHERE order_id = ? ORDER BY id
	`, id)
	if err != nil {
		return order.Order{}, fmt.Errorf("get order items: %w", wrapErr(err))
	}
	o.Items = make([]order.Item, len(itemRows))
	for i, ir := range itemRows {
		o.Items[i] = order.Item{ID: ir.ID, OrderID: ir.OrderID, ProductID: ir.ProductID, Quantity: ir.Quantity, UnitPrice: ir.UnitPrice}
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, f storage.OrderFilter, p storage.Page) ([]order.Order, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ShopID != 0 {
		where = append(where, "shop_id = ?")
		args = append(args, f.ShopID)
	}
	args = append(args, limitOf(p), p.Offset)

	var rows []orderRow
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY id LIMIT ? OFFSET ?`
	if err := sqlx.SelectContext(ctx, s.ext, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", wrapErr(err))
	}
	result := make([]order.Order, len(rows))
	for i, r := range rows {
		result[i] = r.toDomain()
	}
	return result, nil
}

func (s *Store) SetOrderStatus(ctx context.Context, id int64, status order.Status) error {
	res, err := s.ext.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("set order status: %w", wrapErr(err))
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fault.NotFound("order", id)
	}
	return nil
}

func (s *Store) CountUserShopOrders(ctx context.Context, userID, shopID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, s.ext, &count, `
		SELECT COUNT(*) FROM orders WHERE user_id = ? AND shop_id = ?
	`, userID, shopID)
	if err != nil {
		return 0, fmt.Errorf("count user orders: %w", wrapErr(err))
	}
	return count, nil
}
