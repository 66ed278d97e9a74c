package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReconcileTx is the transactional view handed to the reconcile engine while
// the order row is locked. Every call runs inside the same transaction; if
// the callback returns an error nothing is committed.
type ReconcileTx interface {
	// UpdateOrder sets the status pair and va_number on the locked order.
	UpdateOrder(ctx context.Context, st Status, ps PaymentStatus, vaNumber *string) error
	// ProductStock locks the product row and returns its stock.
	// ok=false when the product does not exist.
	ProductStock(ctx context.Context, productID int64) (qty int, ok bool, err error)
	// DecrementStock subtracts qty with a floor at zero, atomically in SQL.
	DecrementStock(ctx context.Context, productID int64, qty int) error
	// DeleteCartRow removes the (userID, productID) cart row. Absence is fine.
	DeleteCartRow(ctx context.Context, userID, productID int64) error
	// MarkProcessed records (order_ref, transactionStatus) in the processed
	// ledger. first=false means an identical notification already ran, so
	// side effects must be skipped.
	MarkProcessed(ctx context.Context, transactionStatus string) (first bool, err error)
}

type ReconcileFn func(ctx context.Context, tx ReconcileTx, o *Order, item *OrderItem) error

// ReconcileStore serializes reconciliation per order ref.
type ReconcileStore interface {
	// WithOrder looks the order up by ref with its item snapshot, locks the
	// row (the per-order serialization point for concurrent webhook
	// deliveries), runs fn, and commits iff fn returns nil.
	// Returns ErrOrderNotFound without calling fn when the ref is unknown.
	WithOrder(ctx context.Context, orderRef string, fn ReconcileFn) error
}

type ReconcileRepo struct{ DB *pgxpool.Pool }

func (r *ReconcileRepo) WithOrder(ctx context.Context, orderRef string, fn ReconcileFn) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var o Order
	var item OrderItem
	err = tx.QueryRow(ctx, `
		SELECT o.id, o.user_id, o.order_ref, o.order_status, o.payment_status,
		       o.payment_id, o.total_amount, o.va_number,
		       oi.id, oi.order_product, oi.is_buy_now
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.order_ref=$1
		FOR UPDATE OF o`, orderRef).Scan(
		&o.ID, &o.UserID, &o.OrderRef, &o.OrderStatus, &o.PaymentStatus,
		&o.PaymentID, &o.TotalAmount, &o.VANumber,
		&item.ID, &item.OrderProduct, &item.IsBuyNow,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	item.OrderID = o.ID

	if err := fn(ctx, &pgxReconcileTx{tx: tx, orderID: o.ID, orderRef: o.OrderRef}, &o, &item); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgxReconcileTx struct {
	tx       pgx.Tx
	orderID  string
	orderRef string
}

func (t *pgxReconcileTx) UpdateOrder(ctx context.Context, st Status, ps PaymentStatus, vaNumber *string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE orders SET order_status=$2, payment_status=$3, va_number=$4, updated_at=now()
		WHERE id=$1`, t.orderID, st, ps, vaNumber)
	return err
}

func (t *pgxReconcileTx) ProductStock(ctx context.Context, productID int64) (int, bool, error) {
	var qty int
	err := t.tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return qty, true, nil
}

func (t *pgxReconcileTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	// GREATEST keeps the floor at zero even if the ordered quantity exceeds
	// the remaining stock.
	_, err := t.tx.Exec(ctx, `
		UPDATE products SET quantity = GREATEST(quantity - $2, 0), updated_at=now()
		WHERE id=$1`, productID, qty)
	return err
}

func (t *pgxReconcileTx) DeleteCartRow(ctx context.Context, userID, productID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM carts WHERE user_id=$1 AND product_id=$2`, userID, productID)
	return err
}

func (t *pgxReconcileTx) MarkProcessed(ctx context.Context, transactionStatus string) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		INSERT INTO processed_notifications(order_ref, transaction_status)
		VALUES ($1,$2)
		ON CONFLICT (order_ref, transaction_status) DO NOTHING`,
		t.orderRef, transactionStatus)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
