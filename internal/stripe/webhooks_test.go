package stripe

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

func TestReadWebhookEvent_MissingSignature(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewBufferString(`{}`))
	_, err := ReadWebhookEvent(req, "whsec_test")
	if err == nil {
		t.Fatal("expected error for missing signature")
	}
}

func TestReadWebhookEvent_Valid(t *testing.T) {
	t.Parallel()

	secret := "whsec_test_secret"
	payload := []byte(`{"id":"evt_test","object":"event","api_version":"2026-01-28.clover","type":"checkout.session.completed","data":{"object":{"id":"cs_test","object":"checkout.session"}}}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)

	event, err := ReadWebhookEvent(req, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event == nil || event.ID != "evt_test" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func checkoutEvent(t *testing.T, metadata map[string]string) *stripeapi.Event {
	t.Helper()

	session := map[string]any{
		"id":       "cs_test_123",
		"object":   "checkout.session",
		"metadata": metadata,
	}
	raw, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("failed to marshal session: %v", err)
	}

	return &stripeapi.Event{
		ID:   "evt_checkout",
		Type: "checkout.session.completed",
		Data: &stripeapi.EventData{Raw: raw},
	}
}

func TestParseCheckoutOutcome(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	event := checkoutEvent(t, map[string]string{
		"order_id": orderID.String(),
		"txn_ref":  orderID.String() + "_1756700000",
	})

	outcome, err := ParseCheckoutOutcome(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.OrderID != orderID {
		t.Fatalf("unexpected order id: got %s, want %s", outcome.OrderID, orderID)
	}
	if !strings.HasPrefix(outcome.TxnRef, orderID.String()+"_") {
		t.Fatalf("unexpected txn ref: %s", outcome.TxnRef)
	}
	if outcome.SessionID != "cs_test_123" {
		t.Fatalf("unexpected session id: %s", outcome.SessionID)
	}
}

func TestParseCheckoutOutcome_MissingOrderID(t *testing.T) {
	t.Parallel()

	event := checkoutEvent(t, map[string]string{"txn_ref": "orphan_ref"})

	_, err := ParseCheckoutOutcome(event)
	if err == nil {
		t.Fatal("expected error for session without order_id metadata")
	}
}
