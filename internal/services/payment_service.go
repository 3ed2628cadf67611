package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	mt "github.com/yudhasanggrama/lappygo-store/external/midtrans"
	"github.com/yudhasanggrama/lappygo-store/external/resend"
	"github.com/yudhasanggrama/lappygo-store/internal/apperr"
	"github.com/yudhasanggrama/lappygo-store/internal/model"

	"github.com/midtrans/midtrans-go"
)

// PaymentService owns the order/payment reconciliation core: the webhook
// reconciler, the pull-based status poller, and continue-payment. Webhook and
// poller deliberately funnel through the same applyMapped routine; an order
// paid via poll must end in exactly the state a webhook would leave it in.
type PaymentService struct {
	Orders   OrderStore
	Payments PaymentStore
	Profiles ProfileStore
	Mailer   Mailer
	Snap     SnapGateway
	Core     CoreGateway
	Events   EventPublisher

	ServerKey string
	AppURL    string
}

func NewPaymentService(
	orders OrderStore,
	payments PaymentStore,
	profiles ProfileStore,
	mailer Mailer,
	snapClient SnapGateway,
	coreClient CoreGateway,
	events EventPublisher,
	serverKey, appURL string,
) *PaymentService {
	return &PaymentService{
		Orders:    orders,
		Payments:  payments,
		Profiles:  profiles,
		Mailer:    mailer,
		Snap:      snapClient,
		Core:      coreClient,
		Events:    events,
		ServerKey: serverKey,
		AppURL:    appURL,
	}
}

// MidtransNotification is the strict schema for an inbound webhook body.
type MidtransNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
}

// Validate fails closed: a notification missing any field needed for
// authentication or mapping is rejected rather than guessed at.
func (n *MidtransNotification) Validate() error {
	switch {
	case n.OrderID == "":
		return apperr.Validation("order_id required")
	case n.StatusCode == "":
		return apperr.Validation("status_code required")
	case n.GrossAmount == "":
		return apperr.Validation("gross_amount required")
	case n.SignatureKey == "":
		return apperr.Validation("signature_key required")
	case n.TransactionStatus == "":
		return apperr.Validation("transaction_status required")
	}
	return nil
}

// ReconcileResult is what the webhook endpoint reports back to the provider.
// Warnings ride a 200 response; only authentication and schema failures get
// an error status, anything else would just provoke the provider's retries.
type ReconcileResult struct {
	OK      bool   `json:"ok"`
	Warning string `json:"warning,omitempty"`
}

// HandleNotification reconciles one gateway webhook.
func (s *PaymentService) HandleNotification(
	ctx context.Context,
	n *MidtransNotification,
) (*ReconcileResult, error) {

	if err := n.Validate(); err != nil {
		return nil, err
	}

	if !mt.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey, s.ServerKey) {
		return nil, apperr.AuthenticationFailed("invalid signature")
	}

	orderID := mt.ExtractOrderID(n.OrderID)
	if orderID == "" {
		// 200 to the provider; retrying an unmappable reference cannot help.
		log.Printf("[webhook] unmapped provider order id %q", n.OrderID)
		return &ReconcileResult{OK: true, Warning: "unmapped_order_id"}, nil
	}

	// Raw provider state goes onto the matching attempt first, whatever the
	// mapping says. Audit survives even when the order transition no-ops.
	payload, _ := json.Marshal(n)
	if err := s.Payments.UpdateByProviderOrderID(ctx, n.OrderID, model.PaymentAttemptUpdate{
		TransactionStatus: strings.ToLower(n.TransactionStatus),
		FraudStatus:       strings.ToLower(n.FraudStatus),
		PaymentType:       n.PaymentType,
		TransactionID:     n.TransactionID,
		GrossAmount:       parseGrossAmount(n.GrossAmount),
		Payload:           payload,
	}); err != nil {
		log.Printf("[webhook] payment attempt update failed for %q: %v", n.OrderID, err)
	}

	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return &ReconcileResult{OK: true, Warning: "order_not_found"}, nil
	}

	mapped := mt.MapStatus(n.TransactionStatus, n.FraudStatus)
	return s.applyMapped(ctx, order, mapped), nil
}

// applyMapped is the single transition routine behind both the webhook and
// the status poller. All idempotency lives in the store guards; replays fall
// through as no-ops.
func (s *PaymentService) applyMapped(
	ctx context.Context,
	order *model.Order,
	m mt.Mapped,
) *ReconcileResult {

	switch {
	case m.IsPaid:
		applied, err := s.Orders.FulfillPaid(ctx, order.ID, time.Now().UTC())
		if err != nil {
			// Durable state did not move; answer 200 anyway and leave the
			// mess to operator reconciliation rather than a retry storm.
			log.Printf("[reconcile] fulfill paid failed for order %s: %v", order.ID, err)
			return &ReconcileResult{OK: true, Warning: "paid_but_fulfill_failed"}
		}
		if applied {
			s.publish(ctx, order.ID, "paid")
		}
		if applied || order.PaymentStatus == model.PaymentPaid {
			sendEmailOnce(ctx, s.Orders, s.Mailer, order, model.EmailPaid,
				s.customerEmail(ctx, order.UserID),
				fmt.Sprintf("Payment received - Order %s", order.ID),
				resend.PaidEmailHTML(order.ID, order.Total, s.AppURL),
			)
		}
		return &ReconcileResult{OK: true}

	case m.IsFailed:
		return s.failOrder(ctx, order, model.OrderCancelled, model.PaymentFailed, m)

	case m.IsExpired:
		return s.failOrder(ctx, order, model.OrderExpired, model.PaymentExpired, m)
	}

	// Pending and anything unrecognized: leave the order alone. Never assume
	// failure from unknown provider vocabulary.
	return &ReconcileResult{OK: true}
}

func (s *PaymentService) failOrder(
	ctx context.Context,
	order *model.Order,
	status model.OrderStatus,
	paymentStatus model.PaymentStatus,
	m mt.Mapped,
) *ReconcileResult {

	applied, err := s.Orders.CancelAndRestock(ctx, order.ID, status, paymentStatus)
	if err != nil {
		log.Printf("[reconcile] %s transition failed for order %s: %v", status, order.ID, err)
		return &ReconcileResult{OK: true, Warning: "transition_failed"}
	}
	if applied {
		s.publish(ctx, order.ID, string(status))
	}

	if applied || order.Status == status {
		reason := m.TransactionStatus
		if m.FraudStatus != "" {
			reason = fmt.Sprintf("%s (%s)", m.TransactionStatus, m.FraudStatus)
		}
		sendEmailOnce(ctx, s.Orders, s.Mailer, order, model.EmailFailed,
			s.customerEmail(ctx, order.UserID),
			fmt.Sprintf("Payment failed - Order %s", order.ID),
			resend.FailedEmailHTML(order.ID, reason, s.AppURL),
		)
	}

	return &ReconcileResult{OK: true}
}

// StatusResult is the poller's answer: the mapped internal reading plus the
// raw gateway payload for inspection.
type StatusResult struct {
	AlreadyPaid   bool                `json:"already_paid,omitempty"`
	Status        model.OrderStatus   `json:"status,omitempty"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
	Warning       string              `json:"warning,omitempty"`
	Raw           any                 `json:"midtrans,omitempty"`
}

// CheckStatus is the pull-based fallback for when a webhook has not arrived.
// It reuses the webhook's mapping and transition logic verbatim.
func (s *PaymentService) CheckStatus(ctx context.Context, orderID, callerID string) (*StatusResult, error) {
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

	if order.PaymentStatus == model.PaymentPaid {
		return &StatusResult{AlreadyPaid: true}, nil
	}

	providerOrderID := "order-" + order.ID
	if attempt, err := s.Payments.LatestByOrder(ctx, order.ID); err == nil && attempt != nil {
		providerOrderID = attempt.ProviderOrderID
	}

	resp, mErr := s.Core.CheckTransaction(providerOrderID)
	if mErr != nil {
		return nil, fmt.Errorf("midtrans status: %w", mErr)
	}

	payload, _ := json.Marshal(resp)
	if err := s.Payments.UpdateByProviderOrderID(ctx, providerOrderID, model.PaymentAttemptUpdate{
		TransactionStatus: strings.ToLower(resp.TransactionStatus),
		FraudStatus:       strings.ToLower(resp.FraudStatus),
		PaymentType:       resp.PaymentType,
		TransactionID:     resp.TransactionID,
		GrossAmount:       parseGrossAmount(resp.GrossAmount),
		Payload:           payload,
	}); err != nil {
		log.Printf("[status] payment attempt update failed for %q: %v", providerOrderID, err)
	}

	mapped := mt.MapStatus(resp.TransactionStatus, resp.FraudStatus)
	rec := s.applyMapped(ctx, order, mapped)

	status, paymentStatus := mappedState(mapped)
	return &StatusResult{
		Status:        status,
		PaymentStatus: paymentStatus,
		Warning:       rec.Warning,
		Raw:           resp,
	}, nil
}

// mappedState is the order-state reading of a gateway category, for responses.
func mappedState(m mt.Mapped) (model.OrderStatus, model.PaymentStatus) {
	switch {
	case m.IsPaid:
		return model.OrderPaid, model.PaymentPaid
	case m.IsFailed:
		return model.OrderCancelled, model.PaymentFailed
	case m.IsExpired:
		return model.OrderExpired, model.PaymentExpired
	}
	return model.OrderPending, model.PaymentUnpaid
}

// ContinueResult answers a continue-payment call.
type ContinueResult struct {
	Paid        bool   `json:"paid"`
	OrderID     string `json:"order_id,omitempty"`
	SnapToken   string `json:"snap_token,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// ContinuePayment re-opens a payment session for an unpaid order, reusing the
// latest attempt's token when it is still around unless forced.
func (s *PaymentService) ContinuePayment(
	ctx context.Context,
	orderID, callerID string,
	force bool,
) (*ContinueResult, error) {

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

	if order.PaymentStatus == model.PaymentPaid {
		return &ContinueResult{Paid: true}, nil
	}
	if order.Status.IsTerminal() {
		return nil, apperr.Precondition("order is " + string(order.Status))
	}

	attempt, err := s.Payments.LatestByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if attempt != nil && !force {
		var session struct {
			Token       string `json:"token"`
			RedirectURL string `json:"redirect_url"`
		}
		if json.Unmarshal(attempt.Payload, &session) == nil && session.Token != "" {
			return &ContinueResult{
				OrderID:     order.ID,
				SnapToken:   session.Token,
				RedirectURL: session.RedirectURL,
			}, nil
		}
	}

	items, err := s.Orders.ItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.Validation("order has no items")
	}

	customer := midtrans.CustomerDetails{}
	if prof, err := s.Profiles.GetByID(ctx, order.UserID); err == nil && prof != nil {
		customer.FName = firstName(prof.FullName)
		customer.Email = prof.Email
	}

	providerOrderID := buildProviderOrderID(order.ID)
	resp, err := openSnapAttempt(ctx, s.Snap, s.Payments, order.ID, providerOrderID, order.Total, customer, items)
	if err != nil {
		return nil, err
	}

	return &ContinueResult{
		OrderID:     order.ID,
		SnapToken:   resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}

// buildProviderOrderID makes a fresh unique reference for a retry attempt.
// Midtrans caps order_id around 50 chars, so the uuid is compacted:
// o-<32hex>-<base36 millis> stays well under it.
func buildProviderOrderID(orderID string) string {
	compact := strings.ReplaceAll(orderID, "-", "")
	suffix := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return "o-" + compact + "-" + suffix
}

func parseGrossAmount(s string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

func (s *PaymentService) customerEmail(ctx context.Context, userID string) string {
	prof, err := s.Profiles.GetByID(ctx, userID)
	if err != nil || prof == nil {
		return ""
	}
	return prof.Email
}

func (s *PaymentService) publish(ctx context.Context, orderID, event string) {
	if s.Events == nil {
		return
	}
	if err := s.Events.OrderEvent(ctx, orderID, event); err != nil {
		log.Printf("[events] publish %s for order %s failed: %v", event, orderID, err)
	}
}
