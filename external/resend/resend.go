package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type ResendMailer struct {
	apiKey  string
	from    string
	client  *http.Client
	baseURL string
}

func NewResendMailer(apiKey, from string) (*ResendMailer, error) {
	if apiKey == "" {
		return nil, errors.New("RESEND_API_KEY not set")
	}

	return &ResendMailer{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: "https://api.resend.com",
	}, nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendOrderEmail delivers one order notification. Callers decide whether to
// send at all; this client only performs the call.
func (m *ResendMailer) SendOrderEmail(ctx context.Context, to, subject, html string) error {
	body := sendRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	}

	b, _ := json.Marshal(body)

	req, _ := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		m.baseURL+"/emails",
		bytes.NewBuffer(b),
	)

	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		return errors.New("failed to send order email: " + buf.String())
	}

	return nil
}

// PaidEmailHTML is the body for the payment-success notification.
func PaidEmailHTML(orderID string, total int64, appURL string) string {
	return fmt.Sprintf(`
		<p>Thank you! Your payment was received.</p>
		<p>Order <b>%s</b> - total Rp %d</p>
		<p><a href="%s/my-order">View your order</a></p>
	`, orderID, total, appURL)
}

// FailedEmailHTML is the body for the payment-failed/expired notification.
func FailedEmailHTML(orderID, reason, appURL string) string {
	return fmt.Sprintf(`
		<p>Your payment for order <b>%s</b> did not go through (%s).</p>
		<p><a href="%s/my-order">Retry payment</a></p>
	`, orderID, reason, appURL)
}

// CancelRequestEmailHTML confirms receipt of a cancellation request.
func CancelRequestEmailHTML(orderID, reason, appURL string) string {
	if reason == "" {
		reason = "-"
	}
	return fmt.Sprintf(`
		<p>We received your cancellation request for order <b>%s</b>.</p>
		<p>Reason: %s</p>
		<p>Our team will review it shortly. <a href="%s/my-order">Track status</a></p>
	`, orderID, reason, appURL)
}

// CancelledEmailHTML is the body for the cancellation-confirmed notification.
func CancelledEmailHTML(orderID, note, appURL string) string {
	return fmt.Sprintf(`
		<p>Order <b>%s</b> has been cancelled.</p>
		<p>%s</p>
		<p><a href="%s/my-order">View your orders</a></p>
	`, orderID, note, appURL)
}
