package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yudhasanggrama/lappygo-store/internal/model"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// fakeDB is an in-memory stand-in for the repositories. Its transition
// methods copy the SQL guards: conditional updates that report whether they
// applied, restock folded into the same "transaction".
type fakeDB struct {
	orders   map[string]*model.Order
	items    map[string][]model.OrderItem
	products map[string]*model.Product
	profiles map[string]*model.Profile
	attempts []*model.Payment
	restocks map[string]int

	fulfillErr error
	nextID     int64
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		orders:   map[string]*model.Order{},
		items:    map[string][]model.OrderItem{},
		products: map[string]*model.Product{},
		profiles: map[string]*model.Profile{},
		restocks: map[string]int{},
	}
}

func (f *fakeDB) addOrder(o model.Order, items ...model.OrderItem) {
	f.orders[o.ID] = &o
	f.items[o.ID] = items
}

func (f *fakeDB) addProduct(p model.Product) {
	f.products[p.ID] = &p
}

func (f *fakeDB) addProfile(p model.Profile) {
	f.profiles[p.ID] = &p
}

func (f *fakeDB) order(id string) *model.Order { return f.orders[id] }

// OrderStore

func (f *fakeDB) CreateWithItems(_ context.Context, o *model.Order, items []model.OrderItem) error {
	for _, it := range items {
		p := f.products[it.ProductID]
		if p == nil || !p.IsActive || p.Stock < it.Quantity {
			return fmt.Errorf("reserve stock for %s: %w", it.ProductID, model.ErrInsufficientStock)
		}
	}
	for _, it := range items {
		f.products[it.ProductID].Stock -= it.Quantity
	}
	cp := *o
	f.orders[o.ID] = &cp
	f.items[o.ID] = items
	return nil
}

func (f *fakeDB) GetByID(_ context.Context, orderID string) (*model.Order, error) {
	o := f.orders[orderID]
	if o == nil {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (f *fakeDB) ListByUser(_ context.Context, userID string) ([]model.Order, error) {
	var out []model.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeDB) ItemsByOrder(_ context.Context, orderID string) ([]model.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeDB) FulfillPaid(_ context.Context, orderID string, paidAt time.Time) (bool, error) {
	if f.fulfillErr != nil {
		return false, f.fulfillErr
	}
	o := f.orders[orderID]
	if o == nil || o.PaymentStatus == model.PaymentPaid || o.Status.IsTerminal() {
		return false, nil
	}
	o.Status = model.OrderPaid
	o.PaymentStatus = model.PaymentPaid
	o.PaidAt = &paidAt
	return true, nil
}

func (f *fakeDB) restock(orderID string) {
	for _, it := range f.items[orderID] {
		if p := f.products[it.ProductID]; p != nil {
			p.Stock += it.Quantity
		}
	}
	f.restocks[orderID]++
}

func (f *fakeDB) CancelAndRestock(_ context.Context, orderID string, status model.OrderStatus, paymentStatus model.PaymentStatus) (bool, error) {
	o := f.orders[orderID]
	if o == nil || o.PaymentStatus == model.PaymentPaid ||
		o.Status == model.OrderShipped || o.Status.IsTerminal() {
		return false, nil
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	o.PaidAt = nil
	f.restock(orderID)
	return true, nil
}

func (f *fakeDB) ApproveCancelAndRestock(_ context.Context, orderID string) (bool, error) {
	o := f.orders[orderID]
	if o == nil || o.PaymentStatus != model.PaymentPaid ||
		o.Status == model.OrderShipped || o.Status.IsTerminal() {
		return false, nil
	}
	o.Status = model.OrderCancelled
	o.PaymentStatus = model.PaymentRefunded
	f.restock(orderID)
	return true, nil
}

func (f *fakeDB) SetShipped(_ context.Context, orderID string) (bool, error) {
	o := f.orders[orderID]
	if o == nil || o.PaymentStatus != model.PaymentPaid ||
		o.Status == model.OrderShipped || o.Status.IsTerminal() {
		return false, nil
	}
	o.Status = model.OrderShipped
	return true, nil
}

func (f *fakeDB) SetCompleted(_ context.Context, orderID string) (bool, error) {
	o := f.orders[orderID]
	if o == nil || o.Status.IsTerminal() {
		return false, nil
	}
	o.Status = model.OrderCompleted
	return true, nil
}

func (f *fakeDB) SetCancelRequested(_ context.Context, orderID string, reason string, at time.Time) (bool, error) {
	o := f.orders[orderID]
	if o == nil || o.CancelRequested {
		return false, nil
	}
	o.CancelRequested = true
	o.CancelReason = &reason
	o.CancelRequestedAt = &at
	return true, nil
}

func (f *fakeDB) MarkEmailSent(_ context.Context, orderID string, class model.EmailClass, at time.Time) error {
	o := f.orders[orderID]
	if o == nil {
		return fmt.Errorf("order %s not found", orderID)
	}
	switch class {
	case model.EmailPaid:
		o.PaymentEmailSent = true
		o.PaymentEmailSentAt = &at
	case model.EmailFailed:
		o.FailedEmailSent = true
		o.FailedEmailSentAt = &at
	case model.EmailCancelRequest:
		o.CancelRequestEmailSentAt = &at
	case model.EmailCancelApproved:
		o.CancelApprovedEmailSentAt = &at
	}
	return nil
}

// PaymentStore

func (f *fakeDB) CreateAttempt(_ context.Context, p *model.Payment) error {
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now()
	cp := *p
	f.attempts = append(f.attempts, &cp)
	return nil
}

func (f *fakeDB) LatestByOrder(_ context.Context, orderID string) (*model.Payment, error) {
	for i := len(f.attempts) - 1; i >= 0; i-- {
		if f.attempts[i].OrderID == orderID {
			cp := *f.attempts[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeDB) UpdateByProviderOrderID(_ context.Context, providerOrderID string, upd model.PaymentAttemptUpdate) error {
	for _, a := range f.attempts {
		if a.ProviderOrderID == providerOrderID {
			if upd.TransactionStatus != "" {
				a.TransactionStatus = &upd.TransactionStatus
			}
			if upd.FraudStatus != "" {
				a.FraudStatus = &upd.FraudStatus
			}
			if upd.PaymentType != "" {
				a.PaymentType = &upd.PaymentType
			}
			if upd.TransactionID != "" {
				a.TransactionID = &upd.TransactionID
			}
			if upd.GrossAmount > 0 {
				a.GrossAmount = upd.GrossAmount
			}
			a.Payload = upd.Payload
		}
	}
	return nil
}

func (f *fakeDB) AppendRefund(_ context.Context, paymentID int64, refund []byte) error {
	for _, a := range f.attempts {
		if a.ID == paymentID {
			a.Payload = append(a.Payload, refund...)
		}
	}
	return nil
}

// ProductStore

func (f *fakeDB) GetByIDs(_ context.Context, ids []string) ([]model.Product, error) {
	var out []model.Product
	for _, id := range ids {
		if p := f.products[id]; p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// fakeProfiles wraps fakeDB to satisfy ProfileStore, whose GetByID collides
// with OrderStore's on a single receiver.
type fakeProfiles struct{ db *fakeDB }

func (f fakeProfiles) GetByID(_ context.Context, userID string) (*model.Profile, error) {
	p := f.db.profiles[userID]
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

type sentEmail struct {
	To      string
	Subject string
}

type fakeMailer struct {
	sent []sentEmail
	fail bool
}

func (m *fakeMailer) SendOrderEmail(_ context.Context, to, subject, _ string) error {
	if m.fail {
		return fmt.Errorf("mailer down")
	}
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject})
	return nil
}

type fakeEvents struct {
	events []string
}

func (e *fakeEvents) OrderEvent(_ context.Context, orderID, event string) error {
	e.events = append(e.events, event+":"+orderID)
	return nil
}

type fakeSnap struct {
	resp    *snap.Response
	err     *midtrans.Error
	calls   int
	lastReq *snap.Request
}

func (s *fakeSnap) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &snap.Response{Token: "tok-1", RedirectURL: "https://pay.example/tok-1"}, nil
}

type fakeCore struct {
	status    *coreapi.TransactionStatusResponse
	statusErr *midtrans.Error

	refundResp  *coreapi.RefundResponse
	refundErr   *midtrans.Error
	refundCalls int
	lastRefund  *coreapi.RefundReq
}

func (c *fakeCore) CheckTransaction(string) (*coreapi.TransactionStatusResponse, *midtrans.Error) {
	if c.statusErr != nil {
		return nil, c.statusErr
	}
	return c.status, nil
}

func (c *fakeCore) RefundTransaction(_ string, req *coreapi.RefundReq) (*coreapi.RefundResponse, *midtrans.Error) {
	c.refundCalls++
	c.lastRefund = req
	if c.refundErr != nil {
		return nil, c.refundErr
	}
	if c.refundResp != nil {
		return c.refundResp, nil
	}
	return &coreapi.RefundResponse{StatusCode: "200"}, nil
}
