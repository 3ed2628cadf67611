package services

import (
	"context"
	"log"

	"github.com/yudhasanggrama/lappygo-store/internal/apperr"
	"github.com/yudhasanggrama/lappygo-store/internal/model"
)

type OrderService struct {
	Orders   OrderStore
	Payments PaymentStore
	Events   EventPublisher
}

func NewOrderService(orders OrderStore, payments PaymentStore, events EventPublisher) *OrderService {
	return &OrderService{Orders: orders, Payments: payments, Events: events}
}

func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	return s.Orders.ListByUser(ctx, userID)
}

type OrderDetail struct {
	Order         *model.Order      `json:"order"`
	Items         []model.OrderItem `json:"items"`
	LatestPayment *model.Payment    `json:"latest_payment,omitempty"`
}

// GetOrder returns an order with its items and latest attempt. Owners see
// their own orders; admins see any.
func (s *OrderService) GetOrder(ctx context.Context, orderID, callerID string, isAdmin bool) (*OrderDetail, error) {
	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.NotFound("order not found")
	}
	if !isAdmin && order.UserID != callerID {
		return nil, apperr.Forbidden("not your order")
	}

	items, err := s.Orders.ItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payment, err := s.Payments.LatestByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderDetail{Order: order, Items: items, LatestPayment: payment}, nil
}

// UpdateStatus applies an admin status change under the transition table.
// Preconditions are re-checked inside the store's conditional update, so two
// racing admins cannot both win.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, next string) (model.OrderStatus, error) {
	target := model.OrderStatus(next)
	switch target {
	case model.OrderShipped, model.OrderCompleted, model.OrderCancelled:
	default:
		return "", apperr.Validation("invalid status")
	}

	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", apperr.NotFound("order not found")
	}

	// Re-applying the status the order already has is a no-op success;
	// terminal statuses stay absorbing for everything else.
	if order.Status == target {
		return target, nil
	}

	var applied bool
	switch target {
	case model.OrderShipped:
		if order.PaymentStatus != model.PaymentPaid {
			return "", apperr.Precondition("cannot_ship_unpaid")
		}
		if order.Status.IsTerminal() {
			return "", apperr.Precondition("order is " + string(order.Status))
		}
		applied, err = s.Orders.SetShipped(ctx, orderID)

	case model.OrderCompleted:
		if order.Status == model.OrderCancelled || order.Status == model.OrderExpired {
			return "", apperr.Precondition("order is " + string(order.Status))
		}
		applied, err = s.Orders.SetCompleted(ctx, orderID)

	case model.OrderCancelled:
		if order.Status == model.OrderShipped || order.Status == model.OrderCompleted {
			return "", apperr.Precondition("cannot_cancel_after_fulfillment")
		}
		if order.PaymentStatus == model.PaymentPaid {
			return "", apperr.Precondition("paid_requires_approval: use the approve-cancel flow")
		}
		paymentStatus := model.PaymentFailed
		if order.PaymentStatus == model.PaymentExpired {
			paymentStatus = model.PaymentExpired
		}
		applied, err = s.Orders.CancelAndRestock(ctx, orderID, model.OrderCancelled, paymentStatus)
	}
	if err != nil {
		return "", err
	}

	if !applied {
		// The conditional update lost a race with another caller; report the
		// conflict against the state that actually won.
		fresh, err := s.Orders.GetByID(ctx, orderID)
		if err != nil {
			return "", err
		}
		if fresh != nil && fresh.Status == target {
			return target, nil
		}
		return "", apperr.Precondition("order state changed")
	}

	if s.Events != nil {
		if err := s.Events.OrderEvent(ctx, orderID, string(target)); err != nil {
			log.Printf("[events] publish %s for order %s failed: %v", target, orderID, err)
		}
	}

	return target, nil
}
