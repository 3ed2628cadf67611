package model

import "time"

// OrderStatus is the fulfillment side of an order's state pair.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderExpired   OrderStatus = "expired"
)

// IsTerminal reports whether no further transition may leave this status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCancelled || s == OrderExpired || s == OrderCompleted
}

// PaymentStatus is the payment side of an order's state pair.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentExpired  PaymentStatus = "expired"
	PaymentRefunded PaymentStatus = "refunded"
)

// EmailClass identifies a notification whose delivery is at-most-once,
// gated by its own persisted sent flag on the order row.
type EmailClass string

const (
	EmailPaid           EmailClass = "payment"
	EmailFailed         EmailClass = "failed"
	EmailCancelRequest  EmailClass = "cancel_request"
	EmailCancelApproved EmailClass = "cancel_approved"
)

// Order represents a row in the orders table.
type Order struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Subtotal      int64         `json:"subtotal"`
	ShippingFee   int64         `json:"shipping_fee"`
	Total         int64         `json:"total"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`

	CancelRequested   bool       `json:"cancel_requested"`
	CancelReason      *string    `json:"cancel_reason,omitempty"`
	CancelRequestedAt *time.Time `json:"cancel_requested_at,omitempty"`

	PaymentEmailSent          bool       `json:"payment_email_sent"`
	PaymentEmailSentAt        *time.Time `json:"payment_email_sent_at,omitempty"`
	FailedEmailSent           bool       `json:"failed_email_sent"`
	FailedEmailSentAt         *time.Time `json:"failed_email_sent_at,omitempty"`
	CancelRequestEmailSentAt  *time.Time `json:"cancel_request_email_sent_at,omitempty"`
	CancelApprovedEmailSentAt *time.Time `json:"cancel_approved_email_sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderItem snapshots a product at purchase time. Immutable afterwards,
// even if the live product row changes.
type OrderItem struct {
	ID        int64   `json:"id"`
	OrderID   string  `json:"order_id"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     int64   `json:"price"`
	ImageURL  *string `json:"image_url,omitempty"`
	Quantity  int     `json:"quantity"`
}
