package services

import (
	"context"
	"time"

	"github.com/yudhasanggrama/lappygo-store/internal/model"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// Services are wired against these narrow interfaces rather than concrete
// clients so main injects the real repositories/gateways and tests inject
// fakes.

type OrderStore interface {
	CreateWithItems(ctx context.Context, o *model.Order, items []model.OrderItem) error
	GetByID(ctx context.Context, orderID string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)
	ItemsByOrder(ctx context.Context, orderID string) ([]model.OrderItem, error)
	FulfillPaid(ctx context.Context, orderID string, paidAt time.Time) (bool, error)
	CancelAndRestock(ctx context.Context, orderID string, status model.OrderStatus, paymentStatus model.PaymentStatus) (bool, error)
	ApproveCancelAndRestock(ctx context.Context, orderID string) (bool, error)
	SetShipped(ctx context.Context, orderID string) (bool, error)
	SetCompleted(ctx context.Context, orderID string) (bool, error)
	SetCancelRequested(ctx context.Context, orderID string, reason string, at time.Time) (bool, error)
	MarkEmailSent(ctx context.Context, orderID string, class model.EmailClass, at time.Time) error
}

type PaymentStore interface {
	CreateAttempt(ctx context.Context, p *model.Payment) error
	LatestByOrder(ctx context.Context, orderID string) (*model.Payment, error)
	UpdateByProviderOrderID(ctx context.Context, providerOrderID string, upd model.PaymentAttemptUpdate) error
	AppendRefund(ctx context.Context, paymentID int64, refund []byte) error
}

type ProductStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

type ProfileStore interface {
	GetByID(ctx context.Context, userID string) (*model.Profile, error)
}

type Mailer interface {
	SendOrderEmail(ctx context.Context, to, subject, html string) error
}

// EventPublisher mirrors events.Publisher; nil-safe, best effort.
type EventPublisher interface {
	OrderEvent(ctx context.Context, orderID, event string) error
}

// SnapGateway opens hosted payment sessions. *snap.Client satisfies it.
type SnapGateway interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// CoreGateway covers status polling and refunds. *coreapi.Client satisfies it.
type CoreGateway interface {
	CheckTransaction(param string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
	RefundTransaction(param string, req *coreapi.RefundReq) (*coreapi.RefundResponse, *midtrans.Error)
}
