// Package stripe provides Stripe webhook validation and payload parsing.
package stripe

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

func ReadWebhookEvent(r *http.Request, secret string) (*stripeapi.Event, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return nil, fmt.Errorf("missing stripe signature header")
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	event, err := webhook.ConstructEvent(payload, signature, secret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature validation failed: %w", err)
	}

	return &event, nil
}

// CheckoutOutcome is the reconciliation-relevant content of a checkout
// session event.
type CheckoutOutcome struct {
	OrderID   uuid.UUID
	TxnRef    string
	SessionID string
}

// ParseCheckoutOutcome extracts the order correlation metadata written at
// session creation time from a checkout session event.
func ParseCheckoutOutcome(event *stripeapi.Event) (*CheckoutOutcome, error) {
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session payload: %w", err)
	}

	rawOrderID := session.Metadata["order_id"]
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return nil, fmt.Errorf("checkout session %s carries no usable order_id metadata: %w", session.ID, err)
	}

	return &CheckoutOutcome{
		OrderID:   orderID,
		TxnRef:    session.Metadata["txn_ref"],
		SessionID: session.ID,
	}, nil
}
