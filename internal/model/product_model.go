package model

import "errors"

// ErrInsufficientStock is returned when an order cannot reserve stock for one
// of its lines.
var ErrInsufficientStock = errors.New("insufficient stock")

// Product is the live catalog row. Stock is owned by the database; all
// adjustments go through relative deltas in the product repository.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    int64   `json:"price"`
	Stock    int     `json:"stock"`
	ImageURL *string `json:"image_url,omitempty"`
	IsActive bool    `json:"is_active"`
}

// Profile holds the per-user fields the order flows need (email for
// notifications, role for admin checks).
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}
