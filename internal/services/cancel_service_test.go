package services

import (
	"context"
	"strings"
	"testing"

	"github.com/yudhasanggrama/lappygo-store/internal/apperr"
	"github.com/yudhasanggrama/lappygo-store/internal/model"

	"github.com/midtrans/midtrans-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCancelService(db *fakeDB, mailer *fakeMailer, core *fakeCore, events *fakeEvents) *CancelService {
	return NewCancelService(db, db, fakeProfiles{db}, mailer, core, events, "https://store.example")
}

func paidOrder() model.Order {
	o := pendingOrder()
	o.Status = model.OrderPaid
	o.PaymentStatus = model.PaymentPaid
	return o
}

func TestSelfCancelUnpaidOrder(t *testing.T) {
	db := newFakeDB()
	db.addOrder(pendingOrder(), model.OrderItem{OrderID: testOrderID, ProductID: "p1", Quantity: 1})
	db.addProduct(model.Product{ID: "p1", Stock: 0, IsActive: true})
	db.addProfile(model.Profile{ID: testUserID, Email: "buyer@example.com"})
	mailer := &fakeMailer{}
	events := &fakeEvents{}
	svc := newCancelService(db, mailer, &fakeCore{}, events)

	require.NoError(t, svc.SelfCancel(context.Background(), testOrderID, testUserID))

	o := db.order(testOrderID)
	assert.Equal(t, model.OrderCancelled, o.Status)
	assert.Equal(t, model.PaymentFailed, o.PaymentStatus)
	assert.Equal(t, 1, db.restocks[testOrderID])
	assert.Equal(t, 1, db.products["p1"].Stock)
	require.Len(t, mailer.sent, 1)
	assert.Contains(t, events.events, "cancelled:"+testOrderID)
}

func TestSelfCancelRepeatStaysSuccess(t *testing.T) {
	db := newFakeDB()
	db.addOrder(pendingOrder())
	db.addProfile(model.Profile{ID: testUserID, Email: "buyer@example.com"})
	mailer := &fakeMailer{}
	svc := newCancelService(db, mailer, &fakeCore{}, &fakeEvents{})

	require.NoError(t, svc.SelfCancel(context.Background(), testOrderID, testUserID))
	require.NoError(t, svc.SelfCancel(context.Background(), testOrderID, testUserID))

	assert.Equal(t, 1, db.restocks[testOrderID], "repeat cancel must not restock twice")
	assert.Len(t, mailer.sent, 1, "repeat cancel must not email twice")
}

func TestSelfCancelGuards(t *testing.T) {
	db := newFakeDB()

	paid := paidOrder()
	db.addOrder(paid)

	shipped := paidOrder()
	shipped.ID = "33333333-3333-3333-3333-333333333333"
	shipped.Status = model.OrderShipped
	db.addOrder(shipped)

	svc := newCancelService(db, &fakeMailer{}, &fakeCore{}, &fakeEvents{})

	err := svc.SelfCancel(context.Background(), paid.ID, testUserID)
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodePreconditionViolation, e.Code)
	assert.Contains(t, e.Message, "requires_approval")

	err = svc.SelfCancel(context.Background(), shipped.ID, testUserID)
	require.Error(t, err)
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, e.Message, "already_fulfilled")

	err = svc.SelfCancel(context.Background(), paid.ID, "someone-else")
	require.Error(t, err)
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeForbidden, e.Code)
}

func TestRequestCancelPaidOrder(t *testing.T) {
	db := newFakeDB()
	db.addOrder(paidOrder())
	db.addProfile(model.Profile{ID: testUserID, Email: "buyer@example.com"})
	mailer := &fakeMailer{}
	events := &fakeEvents{}
	svc := newCancelService(db, mailer, &fakeCore{}, events)

	res, err := svc.RequestCancel(context.Background(), testOrderID, testUserID, "ordered twice")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.Already)

	o := db.order(testOrderID)
	assert.True(t, o.CancelRequested)
	require.NotNil(t, o.CancelReason)
	assert.Equal(t, "ordered twice", *o.CancelReason)
	assert.Equal(t, model.OrderPaid, o.Status, "requesting must not cancel anything yet")
	require.Len(t, mailer.sent, 1)
	assert.Contains(t, events.events, "cancel_requested:"+testOrderID)
}

func TestRequestCancelIsIdempotent(t *testing.T) {
	db := newFakeDB()
	db.addOrder(paidOrder())
	db.addProfile(model.Profile{ID: testUserID, Email: "buyer@example.com"})
	mailer := &fakeMailer{}
	svc := newCancelService(db, mailer, &fakeCore{}, &fakeEvents{})

	_, err := svc.RequestCancel(context.Background(), testOrderID, testUserID, "first")
	require.NoError(t, err)

	res, err := svc.RequestCancel(context.Background(), testOrderID, testUserID, "second")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, res.Already)

	assert.Equal(t, "first", *db.order(testOrderID).CancelReason)
	assert.Len(t, mailer.sent, 1)
}

func TestRequestCancelUnpaidOrderRejected(t *testing.T) {
	db := newFakeDB()
	db.addOrder(pendingOrder())
	svc := newCancelService(db, &fakeMailer{}, &fakeCore{}, &fakeEvents{})

	_, err := svc.RequestCancel(context.Background(), testOrderID, testUserID, "")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, e.Message, "not_paid")
}

func TestApproveCancelRefundsAndRestocks(t *testing.T) {
	db := newFakeDB()
	db.addOrder(paidOrder(), model.OrderItem{OrderID: testOrderID, ProductID: "p1", Quantity: 2})
	db.addProduct(model.Product{ID: "p1", Stock: 1, IsActive: true})
	db.addProfile(model.Profile{ID: testUserID, Email: "buyer@example.com"})
	db.attempts = append(db.attempts, &model.Payment{
		ID: 7, OrderID: testOrderID, Provider: "midtrans",
		ProviderOrderID: "order-" + testOrderID, GrossAmount: 275_000,
	})
	mailer := &fakeMailer{}
	core := &fakeCore{}
	events := &fakeEvents{}
	svc := newCancelService(db, mailer, core, events)

	res, err := svc.ApproveCancel(context.Background(), testOrderID, "customer request")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, res.RefundRequested)
	assert.Empty(t, res.RefundError)

	o := db.order(testOrderID)
	assert.Equal(t, model.OrderCancelled, o.Status)
	assert.Equal(t, model.PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, 1, db.restocks[testOrderID])
	assert.Equal(t, 3, db.products["p1"].Stock)

	require.Equal(t, 1, core.refundCalls)
	assert.Equal(t, int64(275_000), core.lastRefund.Amount)
	assert.True(t, strings.HasPrefix(core.lastRefund.RefundKey, "refund-"))

	require.Len(t, mailer.sent, 1)
	assert.Contains(t, events.events, "refunded:"+testOrderID)
}

func TestApproveCancelSecondTimeIsIdempotent(t *testing.T) {
	db := newFakeDB()
	db.addOrder(paidOrder(), model.OrderItem{OrderID: testOrderID, ProductID: "p1", Quantity: 1})
	db.addProduct(model.Product{ID: "p1", Stock: 0, IsActive: true})
	db.addProfile(model.Profile{ID: testUserID, Email: "buyer@example.com"})
	db.attempts = append(db.attempts, &model.Payment{
		ID: 7, OrderID: testOrderID, ProviderOrderID: "order-" + testOrderID, GrossAmount: 275_000,
	})
	core := &fakeCore{}
	svc := newCancelService(db, &fakeMailer{}, core, &fakeEvents{})

	_, err := svc.ApproveCancel(context.Background(), testOrderID, "")
	require.NoError(t, err)

	res, err := svc.ApproveCancel(context.Background(), testOrderID, "")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, res.AlreadyApproved)

	assert.Equal(t, 1, db.restocks[testOrderID], "second approval must not restock again")
	assert.Equal(t, 1, core.refundCalls, "second approval must not refund again")
}

func TestApproveCancelRefundFailureIsAWarning(t *testing.T) {
	db := newFakeDB()
	db.addOrder(paidOrder())
	db.addProfile(model.Profile{ID: testUserID, Email: "buyer@example.com"})
	db.attempts = append(db.attempts, &model.Payment{
		ID: 7, OrderID: testOrderID, ProviderOrderID: "order-" + testOrderID, GrossAmount: 275_000,
	})
	core := &fakeCore{refundErr: &midtrans.Error{Message: "refund rejected", StatusCode: 412}}
	svc := newCancelService(db, &fakeMailer{}, core, &fakeEvents{})

	res, err := svc.ApproveCancel(context.Background(), testOrderID, "")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.RefundRequested)
	assert.NotEmpty(t, res.RefundError)

	// The cancellation itself must stand regardless of the refund outcome.
	o := db.order(testOrderID)
	assert.Equal(t, model.OrderCancelled, o.Status)
	assert.Equal(t, model.PaymentRefunded, o.PaymentStatus)
}

func TestApproveCancelWithoutAttemptStillCancels(t *testing.T) {
	db := newFakeDB()
	db.addOrder(paidOrder())
	db.addProfile(model.Profile{ID: testUserID, Email: "buyer@example.com"})
	core := &fakeCore{}
	svc := newCancelService(db, &fakeMailer{}, core, &fakeEvents{})

	res, err := svc.ApproveCancel(context.Background(), testOrderID, "")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.RefundRequested)
	assert.NotEmpty(t, res.RefundError)
	assert.Zero(t, core.refundCalls)

	assert.Equal(t, model.PaymentRefunded, db.order(testOrderID).PaymentStatus)
}

func TestApproveCancelRejectsUnpaidOrder(t *testing.T) {
	db := newFakeDB()
	db.addOrder(pendingOrder())
	svc := newCancelService(db, &fakeMailer{}, &fakeCore{}, &fakeEvents{})

	_, err := svc.ApproveCancel(context.Background(), testOrderID, "")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodePreconditionViolation, e.Code)
}
