package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yudhasanggrama/lappygo-store/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	DB *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{DB: db}
}

const orderColumns = `
	id, user_id, status, payment_status, subtotal, shipping_fee, total, paid_at,
	cancel_requested, cancel_reason, cancel_requested_at,
	payment_email_sent, payment_email_sent_at,
	failed_email_sent, failed_email_sent_at,
	cancel_request_email_sent_at, cancel_approved_email_sent_at,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Status, &o.PaymentStatus,
		&o.Subtotal, &o.ShippingFee, &o.Total, &o.PaidAt,
		&o.CancelRequested, &o.CancelReason, &o.CancelRequestedAt,
		&o.PaymentEmailSent, &o.PaymentEmailSentAt,
		&o.FailedEmailSent, &o.FailedEmailSentAt,
		&o.CancelRequestEmailSentAt, &o.CancelApprovedEmailSentAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// CreateWithItems inserts the order, its line-item snapshots, and reserves
// stock for every line in one transaction. Stock commitment happens here, at
// order-creation time; the paid webhook never touches stock again.
func (r *OrderRepository) CreateWithItems(
	ctx context.Context,
	o *model.Order,
	items []model.OrderItem,
) error {

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders
			(id, user_id, status, payment_status, subtotal, shipping_fee, total, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`, o.ID, o.UserID, o.Status, o.PaymentStatus, o.Subtotal, o.ShippingFee, o.Total)
	if err != nil {
		return err
	}

	for _, it := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, name, price, image_url, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, o.ID, it.ProductID, it.Name, it.Price, it.ImageURL, it.Quantity)
		if err != nil {
			return err
		}

		ct, err := tx.Exec(ctx, `
			UPDATE products
			SET stock = stock - $2
			WHERE id = $1 AND is_active AND stock >= $2
		`, it.ProductID, it.Quantity)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("%w: product %s", model.ErrInsufficientStock, it.ProductID)
		}
	}

	return tx.Commit(ctx)
}

// GetByID returns the order row, or nil when absent.
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	q := `SELECT` + orderColumns + ` FROM orders WHERE id=$1`
	return scanOrder(r.DB.QueryRow(ctx, q, orderID))
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	q := `SELECT` + orderColumns + ` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.DB.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *OrderRepository) ItemsByOrder(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, name, price, image_url, quantity
		FROM order_items
		WHERE order_id=$1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Price, &it.ImageURL, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// FulfillPaid flips the order to paid. The WHERE clause is the idempotency
// guard: an order pays at most once, and terminal orders stay put. Returns
// whether the update applied.
func (r *OrderRepository) FulfillPaid(ctx context.Context, orderID string, paidAt time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET status='paid', payment_status='paid', paid_at=$2, updated_at=NOW()
		WHERE id=$1
		  AND payment_status <> 'paid'
		  AND status NOT IN ('cancelled','expired','completed')
	`, orderID, paidAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

const restockOrderItems = `
	UPDATE products p
	SET stock = p.stock + oi.qty
	FROM (
		SELECT product_id, SUM(quantity) AS qty
		FROM order_items
		WHERE order_id = $1
		GROUP BY product_id
	) oi
	WHERE p.id = oi.product_id`

// CancelAndRestock moves an unpaid order into cancelled or expired and
// releases its stock reservation. The guarded update and the restock share a
// transaction, so a replay that loses the guard cannot restock twice.
func (r *OrderRepository) CancelAndRestock(
	ctx context.Context,
	orderID string,
	status model.OrderStatus,
	paymentStatus model.PaymentStatus,
) (bool, error) {

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status=$2, payment_status=$3, paid_at=NULL, updated_at=NOW()
		WHERE id=$1
		  AND payment_status <> 'paid'
		  AND status NOT IN ('shipped','completed','cancelled','expired')
	`, orderID, status, paymentStatus)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, restockOrderItems, orderID); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// ApproveCancelAndRestock is the only path that cancels a paid order. The
// compare-and-swap on payment_status='paid' makes a second concurrent
// approval a no-op, and the restock rides the same transaction.
func (r *OrderRepository) ApproveCancelAndRestock(ctx context.Context, orderID string) (bool, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status='cancelled', payment_status='refunded', updated_at=NOW()
		WHERE id=$1
		  AND payment_status = 'paid'
		  AND status NOT IN ('shipped','completed','cancelled','expired')
	`, orderID)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, restockOrderItems, orderID); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// SetShipped applies the admin "shipped" transition; only paid, unfulfilled
// orders qualify.
func (r *OrderRepository) SetShipped(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET status='shipped', updated_at=NOW()
		WHERE id=$1
		  AND payment_status = 'paid'
		  AND status NOT IN ('shipped','completed','cancelled','expired')
	`, orderID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// SetCompleted applies the admin "completed" transition.
func (r *OrderRepository) SetCompleted(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET status='completed', updated_at=NOW()
		WHERE id=$1
		  AND status NOT IN ('cancelled','expired','completed')
	`, orderID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// SetCancelRequested records a paid-order cancellation request once.
func (r *OrderRepository) SetCancelRequested(
	ctx context.Context,
	orderID string,
	reason string,
	at time.Time,
) (bool, error) {

	var cancelReason *string
	if reason != "" {
		cancelReason = &reason
	}

	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET cancel_requested=TRUE, cancel_reason=$2, cancel_requested_at=$3, updated_at=NOW()
		WHERE id=$1 AND cancel_requested=FALSE
	`, orderID, cancelReason, at)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// MarkEmailSent persists the at-most-once flag for one notification class.
func (r *OrderRepository) MarkEmailSent(
	ctx context.Context,
	orderID string,
	class model.EmailClass,
	at time.Time,
) error {

	var q string
	switch class {
	case model.EmailPaid:
		q = `UPDATE orders SET payment_email_sent=TRUE, payment_email_sent_at=$2, updated_at=NOW() WHERE id=$1`
	case model.EmailFailed:
		q = `UPDATE orders SET failed_email_sent=TRUE, failed_email_sent_at=$2, updated_at=NOW() WHERE id=$1`
	case model.EmailCancelRequest:
		q = `UPDATE orders SET cancel_request_email_sent_at=$2, updated_at=NOW() WHERE id=$1`
	case model.EmailCancelApproved:
		q = `UPDATE orders SET cancel_approved_email_sent_at=$2, updated_at=NOW() WHERE id=$1`
	default:
		return fmt.Errorf("unknown email class %q", class)
	}

	_, err := r.DB.Exec(ctx, q, orderID, at)
	return err
}
