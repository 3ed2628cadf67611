package services

import (
	"context"
	"log"
	"time"

	"github.com/yudhasanggrama/lappygo-store/internal/model"
)

func emailAlreadySent(o *model.Order, class model.EmailClass) bool {
	switch class {
	case model.EmailPaid:
		return o.PaymentEmailSent
	case model.EmailFailed:
		return o.FailedEmailSent
	case model.EmailCancelRequest:
		return o.CancelRequestEmailSentAt != nil
	case model.EmailCancelApproved:
		return o.CancelApprovedEmailSentAt != nil
	}
	return true
}

// sendEmailOnce delivers one notification class for the order at most once.
// The persisted flag is checked before any network call and set right after a
// successful send; a failed send is logged and never fails the caller.
func sendEmailOnce(
	ctx context.Context,
	orders OrderStore,
	mailer Mailer,
	o *model.Order,
	class model.EmailClass,
	to, subject, html string,
) {
	if to == "" || emailAlreadySent(o, class) {
		return
	}

	if err := mailer.SendOrderEmail(ctx, to, subject, html); err != nil {
		log.Printf("[mail] %s email for order %s failed: %v", class, o.ID, err)
		return
	}

	if err := orders.MarkEmailSent(ctx, o.ID, class, time.Now().UTC()); err != nil {
		log.Printf("[mail] marking %s email sent for order %s failed: %v", class, o.ID, err)
	}
}
