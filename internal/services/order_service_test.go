package services

import (
	"context"
	"testing"

	"github.com/yudhasanggrama/lappygo-store/internal/apperr"
	"github.com/yudhasanggrama/lappygo-store/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderService(db *fakeDB, events *fakeEvents) *OrderService {
	return NewOrderService(db, db, events)
}

func TestGetOrderAccess(t *testing.T) {
	db := newFakeDB()
	db.addOrder(pendingOrder(), model.OrderItem{OrderID: testOrderID, ProductID: "p1", Quantity: 1})
	db.attempts = append(db.attempts, &model.Payment{
		ID: 1, OrderID: testOrderID, ProviderOrderID: "order-" + testOrderID,
	})
	svc := newOrderService(db, &fakeEvents{})
	ctx := context.Background()

	detail, err := svc.GetOrder(ctx, testOrderID, testUserID, false)
	require.NoError(t, err)
	assert.Equal(t, testOrderID, detail.Order.ID)
	assert.Len(t, detail.Items, 1)
	require.NotNil(t, detail.LatestPayment)

	_, err = svc.GetOrder(ctx, testOrderID, "someone-else", false)
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeForbidden, e.Code)

	// Admins can read any order.
	_, err = svc.GetOrder(ctx, testOrderID, "someone-else", true)
	require.NoError(t, err)

	_, err = svc.GetOrder(ctx, "99999999-9999-9999-9999-999999999999", testUserID, false)
	require.Error(t, err)
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeOrderNotFound, e.Code)
}

func TestUpdateStatusShip(t *testing.T) {
	db := newFakeDB()
	db.addOrder(paidOrder())
	events := &fakeEvents{}
	svc := newOrderService(db, events)

	status, err := svc.UpdateStatus(context.Background(), testOrderID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, model.OrderShipped, status)
	assert.Equal(t, model.OrderShipped, db.order(testOrderID).Status)
	assert.Contains(t, events.events, "shipped:"+testOrderID)
}

func TestUpdateStatusShipUnpaidRejected(t *testing.T) {
	db := newFakeDB()
	db.addOrder(pendingOrder())
	svc := newOrderService(db, &fakeEvents{})

	_, err := svc.UpdateStatus(context.Background(), testOrderID, "shipped")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodePreconditionViolation, e.Code)
	assert.Contains(t, e.Message, "cannot_ship_unpaid")
}

func TestUpdateStatusCancelRules(t *testing.T) {
	db := newFakeDB()

	shipped := paidOrder()
	shipped.Status = model.OrderShipped
	db.addOrder(shipped)

	paid := paidOrder()
	paid.ID = "44444444-4444-4444-4444-444444444444"
	db.addOrder(paid)

	pending := pendingOrder()
	pending.ID = "55555555-5555-5555-5555-555555555555"
	db.addOrder(pending, model.OrderItem{OrderID: pending.ID, ProductID: "p1", Quantity: 1})
	db.addProduct(model.Product{ID: "p1", Stock: 0, IsActive: true})

	svc := newOrderService(db, &fakeEvents{})
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, shipped.ID, "cancelled")
	require.Error(t, err)
	e, _ := apperr.As(err)
	assert.Contains(t, e.Message, "cannot_cancel_after_fulfillment")

	_, err = svc.UpdateStatus(ctx, paid.ID, "cancelled")
	require.Error(t, err)
	e, _ = apperr.As(err)
	assert.Contains(t, e.Message, "paid_requires_approval")

	status, err := svc.UpdateStatus(ctx, pending.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, status)
	assert.Equal(t, model.PaymentFailed, db.order(pending.ID).PaymentStatus)
	assert.Equal(t, 1, db.products["p1"].Stock, "admin cancel releases the reservation")
}

func TestUpdateStatusCompleteRules(t *testing.T) {
	db := newFakeDB()

	shipped := paidOrder()
	shipped.Status = model.OrderShipped
	db.addOrder(shipped)

	cancelled := pendingOrder()
	cancelled.ID = "66666666-6666-6666-6666-666666666666"
	cancelled.Status = model.OrderCancelled
	cancelled.PaymentStatus = model.PaymentFailed
	db.addOrder(cancelled)

	svc := newOrderService(db, &fakeEvents{})
	ctx := context.Background()

	status, err := svc.UpdateStatus(ctx, shipped.ID, "completed")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, status)

	_, err = svc.UpdateStatus(ctx, cancelled.ID, "completed")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodePreconditionViolation, e.Code)
}

func TestUpdateStatusSameStatusIsNoOp(t *testing.T) {
	db := newFakeDB()
	shipped := paidOrder()
	shipped.Status = model.OrderShipped
	db.addOrder(shipped)
	events := &fakeEvents{}
	svc := newOrderService(db, events)

	status, err := svc.UpdateStatus(context.Background(), shipped.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, model.OrderShipped, status)
	assert.Empty(t, events.events, "a no-op repeat must not publish")
}

func TestUpdateStatusRejectsUnknownTarget(t *testing.T) {
	db := newFakeDB()
	db.addOrder(pendingOrder())
	svc := newOrderService(db, &fakeEvents{})

	for _, target := range []string{"paid", "pending", "expired", "refunded", ""} {
		_, err := svc.UpdateStatus(context.Background(), testOrderID, target)
		require.Error(t, err, target)
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeValidationError, e.Code, target)
	}
}
