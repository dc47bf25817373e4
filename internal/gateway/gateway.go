// Package gateway encapsulates payment gateway protocol details: redirect URL
// construction, signature verification, and response-code mapping.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aimstoreapp/aimstore/internal/models"
)

// Outcome is the gateway-independent result of a payment attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomePending   Outcome = "pending"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// ErrBadSignature marks a callback whose signature did not verify. It is
// logged in full server-side but never exposed to the untrusted caller.
var ErrBadSignature = errors.New("gateway signature verification failed")

// ClientContext carries request-scoped details the gateway wants echoed back.
type ClientContext struct {
	IPAddress string
	Locale    string
}

type Provider interface {
	Name() string
	// BuildPaymentRequest returns the redirect URL for the payment page and
	// the gateway transaction reference recorded on the transaction.
	BuildPaymentRequest(ctx context.Context, order *models.Order, method *models.PaymentMethod, client ClientContext) (redirectURL string, txnRef string, err error)
	// VerifySignature reports whether the callback parameter set carries a
	// valid signature. Any failure is treated as tampering.
	VerifySignature(params map[string]string) bool
	// MapResponseCode maps a gateway response code to a standard outcome.
	// Unknown codes map to OutcomeFailed, never to OutcomeSuccess.
	MapResponseCode(code string) Outcome
}

// ParseTransactionRef recovers the owning order ID from a gateway transaction
// reference of the form {orderID}_{nonce}. Unrecognized formats fail closed.
func ParseTransactionRef(ref string) (uuid.UUID, error) {
	parts := strings.SplitN(ref, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return uuid.Nil, fmt.Errorf("unrecognized transaction reference format: %q", ref)
	}
	orderID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid order id in transaction reference: %w", err)
	}
	return orderID, nil
}
