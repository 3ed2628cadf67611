package model

import "time"

// Payment is one gateway transaction session tied to an order. An order may
// accumulate several attempts across checkout/continue-payment calls; each has
// its own unique provider_order_id.
type Payment struct {
	ID                int64     `json:"id"`
	OrderID           string    `json:"order_id"`
	Provider          string    `json:"provider"`
	ProviderOrderID   string    `json:"provider_order_id"`
	GrossAmount       int64     `json:"gross_amount"`
	TransactionStatus *string   `json:"transaction_status,omitempty"`
	FraudStatus       *string   `json:"fraud_status,omitempty"`
	PaymentType       *string   `json:"payment_type,omitempty"`
	TransactionID     *string   `json:"transaction_id,omitempty"`
	Payload           []byte    `json:"payload,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PaymentAttemptUpdate carries the provider's latest reading onto one
// attempt. Empty strings mean "not reported" and are stored as NULL.
type PaymentAttemptUpdate struct {
	TransactionStatus string
	FraudStatus       string
	PaymentType       string
	TransactionID     string
	GrossAmount       int64
	Payload           []byte
}
