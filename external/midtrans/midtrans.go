package midtrans

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

func env(production bool) midtrans.EnvironmentType {
	if production {
		return midtrans.Production
	}
	return midtrans.Sandbox
}

// NewSnapClient builds the Snap client used to open payment sessions.
func NewSnapClient(serverKey string, production bool) *snap.Client {
	var client snap.Client
	client.New(serverKey, env(production))
	return &client
}

// NewCoreClient builds the Core API client used for status polling and refunds.
func NewCoreClient(serverKey string, production bool) *coreapi.Client {
	var client coreapi.Client
	client.New(serverKey, env(production))
	return &client
}

// VerifySignature checks the notification signature:
// sha512(order_id + status_code + gross_amount + serverKey).
func VerifySignature(
	orderID string,
	statusCode string,
	grossAmount string,
	signature string,
	serverKey string,
) bool {
	raw := orderID + statusCode + grossAmount + serverKey
	hash := sha512.Sum512([]byte(raw))
	expected := hex.EncodeToString(hash[:])

	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}

var (
	prefixedRef = regexp.MustCompile(`^order-([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)
	compactRef  = regexp.MustCompile(`^o-([0-9a-fA-F]{32})-`)
	rawRef      = regexp.MustCompile(`^([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)
)

// ExtractOrderID resolves the internal order uuid from a provider order_id.
// Supported formats, in priority order:
//
//	order-<uuid>         (checkout)
//	o-<32hex>-<suffix>   (continue-payment retries)
//	<uuid>               (raw fallback)
//
// Returns "" when none matches.
func ExtractOrderID(providerOrderID string) string {
	s := strings.TrimSpace(providerOrderID)

	if m := prefixedRef.FindStringSubmatch(s); m != nil {
		return strings.ToLower(m[1])
	}

	if m := compactRef.FindStringSubmatch(s); m != nil {
		x := strings.ToLower(m[1])
		return x[0:8] + "-" + x[8:12] + "-" + x[12:16] + "-" + x[16:20] + "-" + x[20:]
	}

	if m := rawRef.FindStringSubmatch(s); m != nil {
		return strings.ToLower(m[1])
	}

	return ""
}

// Mapped is the internal reading of a gateway transaction status. Anything
// not recognized as paid, failed, or expired counts as pending; an unknown
// provider status must never cancel an order.
type Mapped struct {
	TransactionStatus string
	FraudStatus       string
	IsPaid            bool
	IsFailed          bool
	IsExpired         bool
	IsPending         bool
}

// MapStatus maps the raw Midtrans vocabulary into payment categories. Shared
// by the webhook reconciler and the status poller; keep it the only place
// that interprets transaction_status strings.
func MapStatus(transactionStatus, fraudStatus string) Mapped {
	tx := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))

	m := Mapped{TransactionStatus: tx, FraudStatus: fraud}

	switch {
	case tx == "settlement" || tx == "success":
		m.IsPaid = true
	case tx == "capture" && (fraud == "" || fraud == "accept"):
		m.IsPaid = true
	case tx == "deny" || tx == "cancel" || tx == "failure":
		m.IsFailed = true
	case tx == "expire":
		m.IsExpired = true
	default:
		m.IsPending = true
	}

	return m
}
