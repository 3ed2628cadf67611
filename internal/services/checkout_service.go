package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/yudhasanggrama/lappygo-store/internal/apperr"
	"github.com/yudhasanggrama/lappygo-store/internal/model"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

type CheckoutService struct {
	Orders   OrderStore
	Payments PaymentStore
	Products ProductStore
	Profiles ProfileStore
	Snap     SnapGateway
	Events   EventPublisher

	FreeShippingMin int64
	ShippingFlatFee int64
}

func NewCheckoutService(
	orders OrderStore,
	payments PaymentStore,
	products ProductStore,
	profiles ProfileStore,
	snapClient SnapGateway,
	events EventPublisher,
	freeShippingMin, shippingFlatFee int64,
) *CheckoutService {
	return &CheckoutService{
		Orders:          orders,
		Payments:        payments,
		Products:        products,
		Profiles:        profiles,
		Snap:            snapClient,
		Events:          events,
		FreeShippingMin: freeShippingMin,
		ShippingFlatFee: shippingFlatFee,
	}
}

type CheckoutItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ShippingInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CheckoutResult struct {
	OrderID     string `json:"order_id"`
	SnapToken   string `json:"snap_token"`
	RedirectURL string `json:"redirect_url"`
}

// Checkout validates the cart against live products, creates the order with
// snapshot line items while reserving stock, and opens a Snap session.
// Prices always come from the products table, never from the client.
func (s *CheckoutService) Checkout(
	ctx context.Context,
	userID string,
	items []CheckoutItem,
	shipping ShippingInfo,
) (*CheckoutResult, error) {

	if len(items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}
	productIDs := make([]string, 0, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, apperr.Validation("invalid cart item")
		}
		productIDs = append(productIDs, it.ProductID)
	}

	products, err := s.Products.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	productMap := make(map[string]model.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	var subtotal int64
	for _, it := range items {
		p, ok := productMap[it.ProductID]
		if !ok || !p.IsActive {
			return nil, apperr.Validation(fmt.Sprintf("product %s is no longer available", it.ProductID))
		}
		if p.Stock < it.Quantity {
			return nil, apperr.Validation(fmt.Sprintf("insufficient stock for %s, available: %d", p.Name, p.Stock))
		}
		subtotal += p.Price * int64(it.Quantity)
	}

	shippingFee := s.ShippingFlatFee
	if subtotal > s.FreeShippingMin {
		shippingFee = 0
	}
	total := subtotal + shippingFee

	order := &model.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentUnpaid,
		Subtotal:      subtotal,
		ShippingFee:   shippingFee,
		Total:         total,
	}

	orderItems := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		p := productMap[it.ProductID]
		orderItems = append(orderItems, model.OrderItem{
			OrderID:   order.ID,
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			ImageURL:  p.ImageURL,
			Quantity:  it.Quantity,
		})
	}

	if err := s.Orders.CreateWithItems(ctx, order, orderItems); err != nil {
		if errors.Is(err, model.ErrInsufficientStock) {
			return nil, apperr.Validation(err.Error())
		}
		return nil, err
	}

	customer := midtrans.CustomerDetails{
		FName: firstName(shipping.Name),
		Email: shipping.Email,
		Phone: shipping.Phone,
	}
	if customer.FName == "" || customer.Email == "" {
		if prof, err := s.Profiles.GetByID(ctx, userID); err == nil && prof != nil {
			if customer.FName == "" {
				customer.FName = firstName(prof.FullName)
			}
			if customer.Email == "" {
				customer.Email = prof.Email
			}
		}
	}

	providerOrderID := "order-" + order.ID

	resp, err := openSnapAttempt(ctx, s.Snap, s.Payments, order.ID, providerOrderID, total, customer, orderItems)
	if err != nil {
		// Order stays pending with its reservation; the customer can retry
		// via continue-payment.
		return nil, err
	}

	if s.Events != nil {
		if err := s.Events.OrderEvent(ctx, order.ID, "created"); err != nil {
			log.Printf("[checkout] order event publish failed: %v", err)
		}
	}

	return &CheckoutResult{
		OrderID:     order.ID,
		SnapToken:   resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}

// openSnapAttempt opens one gateway session and records it as a new payment
// attempt. Shared by checkout and continue-payment so every attempt row looks
// the same.
func openSnapAttempt(
	ctx context.Context,
	gateway SnapGateway,
	payments PaymentStore,
	orderID string,
	providerOrderID string,
	total int64,
	customer midtrans.CustomerDetails,
	items []model.OrderItem,
) (*snap.Response, error) {

	itemDetails := buildItemDetails(items, total)

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  providerOrderID,
			GrossAmt: total,
		},
		CustomerDetail: &customer,
		Items:          &itemDetails,
	}

	resp, snapErr := gateway.CreateTransaction(req)
	if snapErr != nil {
		return nil, fmt.Errorf("midtrans snap: %w", snapErr)
	}

	payload, _ := json.Marshal(resp)

	attempt := &model.Payment{
		OrderID:           orderID,
		Provider:          "midtrans",
		ProviderOrderID:   providerOrderID,
		GrossAmount:       total,
		TransactionStatus: strptr("pending"),
		Payload:           payload,
	}
	if err := payments.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	return resp, nil
}

// buildItemDetails maps line items for the gateway and reconciles any
// difference between the item sum and the order total with a synthetic line,
// so the gateway-side sum always equals the order total exactly. A positive
// difference is a fee line, a negative one a discount line.
func buildItemDetails(items []model.OrderItem, orderTotal int64) []midtrans.ItemDetails {
	out := make([]midtrans.ItemDetails, 0, len(items)+1)

	var itemsTotal int64
	for _, it := range items {
		itemsTotal += it.Price * int64(it.Quantity)
		out = append(out, midtrans.ItemDetails{
			ID:    it.ProductID,
			Name:  truncate50(it.Name),
			Price: it.Price,
			Qty:   int32(it.Quantity),
		})
	}

	if diff := orderTotal - itemsTotal; diff != 0 {
		line := midtrans.ItemDetails{ID: "fee", Name: "Shipping/Fee", Price: diff, Qty: 1}
		if diff < 0 {
			line.ID = "discount"
			line.Name = "Discount"
		}
		out = append(out, line)
	}

	return out
}

// Midtrans caps item names at 50 chars.
func truncate50(s string) string {
	if len(s) > 50 {
		return s[:50]
	}
	return s
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func strptr(s string) *string { return &s }
