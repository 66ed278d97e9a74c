package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOrderNotFound = errors.New("order not found")

type Repo struct{ DB *pgxpool.Pool }

type NewOrder struct {
	UserID      int64
	AddressName string
	OrderRef    string
	PaymentID   string // gateway token
	TotalAmount int64
	IsBuyNow    bool
	Items       []ItemInput
}

// CreateOrderTx persists a fresh pending order in one transaction:
// purge the user's abandoned channel-less pending orders, snapshot the line
// items from the products table (jangan percaya harga dari client), insert
// order + order_item. Nothing is left behind if any step fails.
func (r *Repo) CreateOrderTx(ctx context.Context, in NewOrder) (orderID string, snapshot []ProductSnapshot, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// cleanup checkout lama yang belum pilih channel pembayaran
	if _, err := tx.Exec(ctx, `
		DELETE FROM order_items WHERE order_id IN (
			SELECT id FROM orders
			WHERE user_id=$1 AND order_status='pending' AND va_number IS NULL)`,
		in.UserID); err != nil {
		return "", nil, err
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM orders
		WHERE user_id=$1 AND order_status='pending' AND va_number IS NULL`,
		in.UserID); err != nil {
		return "", nil, err
	}

	ids := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.ProductID)
	}
	rows, err := tx.Query(ctx, `SELECT id, title, price FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return "", nil, err
	}
	type priced struct {
		title string
		price int64
	}
	prices := map[int64]priced{}
	for rows.Next() {
		var id int64
		var p priced
		if err := rows.Scan(&id, &p.title, &p.price); err != nil {
			return "", nil, err
		}
		prices[id] = p
	}
	if err := rows.Err(); err != nil {
		return "", nil, err
	}

	snapshot = make([]ProductSnapshot, 0, len(in.Items))
	for _, it := range in.Items {
		p, ok := prices[it.ProductID]
		if !ok {
			return "", nil, fmt.Errorf("product not found: %d", it.ProductID)
		}
		if it.Quantity <= 0 {
			return "", nil, fmt.Errorf("invalid quantity for product %d", it.ProductID)
		}
		snapshot = append(snapshot, ProductSnapshot{
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			Price:       p.price,
			ProductName: p.title,
		})
	}

	orderID = uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, address_name, order_date, order_ref,
		                   order_status, payment_status, payment_id, total_amount, va_number)
		VALUES ($1,$2,$3,$4,$5,'pending','pending',$6,$7,NULL)`,
		orderID, in.UserID, in.AddressName, time.Now().UTC(), in.OrderRef,
		in.PaymentID, in.TotalAmount)
	if err != nil {
		return "", nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_items(id, order_id, order_product, is_buy_now)
		VALUES ($1,$2,$3,$4)`,
		uuid.NewString(), orderID, snapshot, in.IsBuyNow)
	if err != nil {
		return "", nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", nil, err
	}
	return orderID, snapshot, nil
}

// UpdateCancelled flips the order to cancelled/cancelled. Unconditional:
// it runs even when the gateway cancellation was not confirmed.
func (r *Repo) UpdateCancelled(ctx context.Context, orderRef string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders SET order_status='cancelled', payment_status='cancelled', updated_at=now()
		WHERE order_ref=$1`, orderRef)
	return err
}

type OrderWithItems struct {
	Order Order
	Item  OrderItem
}

// ListFinalized returns the user's orders that reached a payment channel
// (va_number set), newest first, with their line-item snapshots.
func (r *Repo) ListFinalized(ctx context.Context, userID int64) ([]OrderWithItems, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT o.id, o.user_id, o.address_name, o.order_date, o.order_ref,
		       o.order_status, o.payment_status, o.payment_id, o.total_amount,
		       o.va_number, o.created_at, o.updated_at,
		       oi.id, oi.order_product, oi.is_buy_now
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.user_id=$1 AND o.va_number IS NOT NULL
		ORDER BY o.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderWithItems
	for rows.Next() {
		var ow OrderWithItems
		if err := rows.Scan(
			&ow.Order.ID, &ow.Order.UserID, &ow.Order.AddressName, &ow.Order.OrderDate,
			&ow.Order.OrderRef, &ow.Order.OrderStatus, &ow.Order.PaymentStatus,
			&ow.Order.PaymentID, &ow.Order.TotalAmount, &ow.Order.VANumber,
			&ow.Order.CreatedAt, &ow.Order.UpdatedAt,
			&ow.Item.ID, &ow.Item.OrderProduct, &ow.Item.IsBuyNow,
		); err != nil {
			return nil, err
		}
		ow.Item.OrderID = ow.Order.ID
		out = append(out, ow)
	}
	return out, rows.Err()
}

// GetByID fetches one order with its item snapshot by internal row id.
func (r *Repo) GetByID(ctx context.Context, id string) (*OrderWithItems, error) {
	var ow OrderWithItems
	err := r.DB.QueryRow(ctx, `
		SELECT o.id, o.user_id, o.address_name, o.order_date, o.order_ref,
		       o.order_status, o.payment_status, o.payment_id, o.total_amount,
		       o.va_number, o.created_at, o.updated_at,
		       oi.id, oi.order_product, oi.is_buy_now
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.id=$1`, id).Scan(
		&ow.Order.ID, &ow.Order.UserID, &ow.Order.AddressName, &ow.Order.OrderDate,
		&ow.Order.OrderRef, &ow.Order.OrderStatus, &ow.Order.PaymentStatus,
		&ow.Order.PaymentID, &ow.Order.TotalAmount, &ow.Order.VANumber,
		&ow.Order.CreatedAt, &ow.Order.UpdatedAt,
		&ow.Item.ID, &ow.Item.OrderProduct, &ow.Item.IsBuyNow,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	ow.Item.OrderID = ow.Order.ID
	return &ow, nil
}
