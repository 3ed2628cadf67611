package repository

import (
	"context"
	"errors"

	"github.com/yudhasanggrama/lappygo-store/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	DB *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

// CreateAttempt records a freshly opened gateway session for the order.
func (r *PaymentRepository) CreateAttempt(ctx context.Context, p *model.Payment) error {
	q := `
		INSERT INTO payments
			(order_id, provider, provider_order_id, gross_amount, transaction_status, payload, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id
	`
	return r.DB.QueryRow(
		ctx, q,
		p.OrderID, p.Provider, p.ProviderOrderID, p.GrossAmount, p.TransactionStatus, p.Payload,
	).Scan(&p.ID)
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Provider, &p.ProviderOrderID, &p.GrossAmount,
		&p.TransactionStatus, &p.FraudStatus, &p.PaymentType, &p.TransactionID,
		&p.Payload, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// LatestByOrder returns the most recent attempt for the order, or nil.
func (r *PaymentRepository) LatestByOrder(ctx context.Context, orderID string) (*model.Payment, error) {
	q := `
		SELECT id, order_id, provider, provider_order_id, gross_amount,
		       transaction_status, fraud_status, payment_type, transaction_id,
		       payload, created_at, updated_at
		FROM payments
		WHERE order_id=$1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanPayment(r.DB.QueryRow(ctx, q, orderID))
}

// UpdateByProviderOrderID writes the latest known provider state onto the one
// attempt matching the provider reference. Never keyed by order_id: multiple
// attempts may coexist and only the referenced one may change.
func (r *PaymentRepository) UpdateByProviderOrderID(
	ctx context.Context,
	providerOrderID string,
	upd model.PaymentAttemptUpdate,
) error {

	_, err := r.DB.Exec(ctx, `
		UPDATE payments
		SET transaction_status = NULLIF($2, ''),
		    fraud_status       = NULLIF($3, ''),
		    payment_type       = NULLIF($4, ''),
		    transaction_id     = NULLIF($5, ''),
		    gross_amount       = $6,
		    payload            = $7,
		    updated_at         = NOW()
		WHERE provider_order_id = $1
	`,
		providerOrderID,
		upd.TransactionStatus, upd.FraudStatus, upd.PaymentType, upd.TransactionID,
		upd.GrossAmount, upd.Payload,
	)
	return err
}

// AppendRefund merges a refund sub-record into the attempt payload without
// overwriting what the gateway already reported.
func (r *PaymentRepository) AppendRefund(ctx context.Context, paymentID int64, refund []byte) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE payments
		SET payload = COALESCE(payload, '{}'::jsonb) || jsonb_build_object('refund', $2::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`, paymentID, refund)
	return err
}
