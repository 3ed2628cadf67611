package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/yudhasanggrama/lappygo-store/external/resend"
	"github.com/yudhasanggrama/lappygo-store/internal/apperr"
	"github.com/yudhasanggrama/lappygo-store/internal/model"

	"github.com/midtrans/midtrans-go/coreapi"
)

// CancelService implements the two cancellation entry points and the admin
// approval that converges paid orders onto the same terminal transition.
type CancelService struct {
	Orders   OrderStore
	Payments PaymentStore
	Profiles ProfileStore
	Mailer   Mailer
	Core     CoreGateway
	Events   EventPublisher

	AppURL string
}

func NewCancelService(
	orders OrderStore,
	payments PaymentStore,
	profiles ProfileStore,
	mailer Mailer,
	coreClient CoreGateway,
	events EventPublisher,
	appURL string,
) *CancelService {
	return &CancelService{
		Orders:   orders,
		Payments: payments,
		Profiles: profiles,
		Mailer:   mailer,
		Core:     coreClient,
		Events:   events,
		AppURL:   appURL,
	}
}

// SelfCancel cancels an unpaid order on the owner's request. Paid orders are
// pushed to the request/approval path instead.
func (s *CancelService) SelfCancel(ctx context.Context, orderID, callerID string) error {
	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return apperr.NotFound("order not found")
	}
	if order.UserID != callerID {
		return apperr.Forbidden("not your order")
	}

	if order.Status == model.OrderShipped || order.Status == model.OrderCompleted {
		return apperr.Precondition("already_fulfilled: order already shipped/completed")
	}
	if order.PaymentStatus == model.PaymentPaid {
		return apperr.Precondition("requires_approval: paid orders need a cancel request")
	}

	applied, err := s.Orders.CancelAndRestock(ctx, orderID, model.OrderCancelled, model.PaymentFailed)
	if err != nil {
		return err
	}
	if !applied {
		// Lost a race. A repeat cancel of an already-cancelled order stays a
		// success; anything else is a real conflict.
		fresh, err := s.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if fresh == nil || fresh.Status != model.OrderCancelled {
			return apperr.Precondition("order state changed, cannot cancel")
		}
		order = fresh
	} else {
		s.publish(ctx, orderID, "cancelled")
	}

	sendEmailOnce(ctx, s.Orders, s.Mailer, order, model.EmailCancelApproved,
		s.ownerEmail(ctx, order.UserID),
		fmt.Sprintf("Order cancelled - %s", order.ID),
		resend.CancelledEmailHTML(order.ID, "Cancelled by customer (unpaid).", s.AppURL),
	)

	return nil
}

type RequestCancelResult struct {
	OK      bool `json:"ok"`
	Already bool `json:"already,omitempty"`
}

// RequestCancel records a paid order's cancellation request. Re-requesting is
// a success with the already flag set; the notification goes out once.
func (s *CancelService) RequestCancel(
	ctx context.Context,
	orderID, callerID, reason string,
) (*RequestCancelResult, error) {

	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.NotFound("order not found")
	}
	if order.UserID != callerID {
		return nil, apperr.Forbidden("not your order")
	}

	if order.Status == model.OrderShipped || order.Status == model.OrderCompleted {
		return nil, apperr.Precondition("already_fulfilled: order already shipped/completed")
	}
	if order.PaymentStatus != model.PaymentPaid {
		return nil, apperr.Precondition("not_paid: use cancel instead")
	}

	if order.CancelRequested {
		return &RequestCancelResult{OK: true, Already: true}, nil
	}

	applied, err := s.Orders.SetCancelRequested(ctx, orderID, reason, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !applied {
		return &RequestCancelResult{OK: true, Already: true}, nil
	}

	s.publish(ctx, orderID, "cancel_requested")

	sendEmailOnce(ctx, s.Orders, s.Mailer, order, model.EmailCancelRequest,
		s.ownerEmail(ctx, order.UserID),
		fmt.Sprintf("Cancellation request received - Order %s", order.ID),
		resend.CancelRequestEmailHTML(order.ID, reason, s.AppURL),
	)

	return &RequestCancelResult{OK: true}, nil
}

type ApprovalResult struct {
	OK              bool   `json:"ok"`
	AlreadyApproved bool   `json:"already_approved,omitempty"`
	RefundRequested bool   `json:"refund_requested"`
	RefundError     string `json:"refund_error,omitempty"`
}

// ApproveCancel is the only path that cancels a paid order: restock and the
// paid→refunded flip happen atomically, then the gateway refund and the
// notification run best effort. A refund failure is a warning, never a
// rollback of the cancellation.
func (s *CancelService) ApproveCancel(ctx context.Context, orderID, note string) (*ApprovalResult, error) {
	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.NotFound("order not found")
	}

	applied, err := s.Orders.ApproveCancelAndRestock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !applied {
		if order.Status == model.OrderCancelled && order.PaymentStatus == model.PaymentRefunded {
			// Second approval: nothing further changes.
			return &ApprovalResult{OK: true, AlreadyApproved: true}, nil
		}
		return nil, apperr.Precondition("order is not in a refundable paid state")
	}

	s.publish(ctx, orderID, "refunded")

	result := &ApprovalResult{OK: true}
	s.requestRefund(ctx, order, note, result)

	emailNote := "Cancellation approved. Refund is being processed."
	if result.RefundError != "" {
		emailNote = "Cancellation approved. Refund issue: " + result.RefundError
	}
	sendEmailOnce(ctx, s.Orders, s.Mailer, order, model.EmailCancelApproved,
		s.ownerEmail(ctx, order.UserID),
		fmt.Sprintf("Order cancelled - %s", order.ID),
		resend.CancelledEmailHTML(order.ID, emailNote, s.AppURL),
	)

	return result, nil
}

func (s *CancelService) requestRefund(
	ctx context.Context,
	order *model.Order,
	note string,
	result *ApprovalResult,
) {
	attempt, err := s.Payments.LatestByOrder(ctx, order.ID)
	if err != nil || attempt == nil || attempt.ProviderOrderID == "" {
		result.RefundError = "no provider reference found for refund"
		return
	}

	amount := attempt.GrossAmount
	if amount <= 0 {
		amount = order.Total
	}
	reason := note
	if reason == "" {
		reason = "Order cancelled (admin approved)"
	}

	resp, mErr := s.Core.RefundTransaction(attempt.ProviderOrderID, &coreapi.RefundReq{
		RefundKey: fmt.Sprintf("refund-%d", time.Now().UnixMilli()),
		Amount:    amount,
		Reason:    reason,
	})
	if mErr != nil {
		log.Printf("[refund] order %s attempt %s failed: %v", order.ID, attempt.ProviderOrderID, mErr)
		result.RefundError = mErr.Error()
		return
	}

	result.RefundRequested = true

	record, _ := json.Marshal(map[string]any{
		"requested_at":      time.Now().UTC().Format(time.RFC3339),
		"amount":            amount,
		"note":              note,
		"provider_response": resp,
	})
	if err := s.Payments.AppendRefund(ctx, attempt.ID, record); err != nil {
		log.Printf("[refund] recording refund for order %s failed: %v", order.ID, err)
	}
}

func (s *CancelService) ownerEmail(ctx context.Context, userID string) string {
	prof, err := s.Profiles.GetByID(ctx, userID)
	if err != nil || prof == nil {
		return ""
	}
	return prof.Email
}

func (s *CancelService) publish(ctx context.Context, orderID, event string) {
	if s.Events == nil {
		return
	}
	if err := s.Events.OrderEvent(ctx, orderID, event); err != nil {
		log.Printf("[events] publish %s for order %s failed: %v", event, orderID, err)
	}
}
