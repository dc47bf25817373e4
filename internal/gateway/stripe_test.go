package gateway

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/aimstoreapp/aimstore/internal/models"
)

func TestNewStripeBuildsClient(t *testing.T) {
	t.Parallel()

	s := NewStripe("sk_test_123", "https://shop.example.com")
	if s.client == nil {
		t.Fatal("expected a configured API client")
	}
	if s.Name() != ProviderStripe {
		t.Fatalf("Name() = %q, want %q", s.Name(), ProviderStripe)
	}
}

func TestStripeBuildPaymentRequestRejectsNonPositiveTotal(t *testing.T) {
	t.Parallel()

	s := NewStripe("sk_test_123", "https://shop.example.com")
	order := &models.Order{ID: uuid.New()}

	if _, _, err := s.BuildPaymentRequest(context.Background(), order, nil, ClientContext{}); err == nil {
		t.Fatal("expected error for non-positive total")
	}
}

func TestStripeVerifySignatureFailsClosed(t *testing.T) {
	t.Parallel()

	s := NewStripe("sk_test_123", "https://shop.example.com")
	if s.VerifySignature(map[string]string{"anything": "x"}) {
		t.Fatal("redirect parameters must never verify; webhooks carry the signature")
	}
}

func TestStripeMapResponseCode(t *testing.T) {
	t.Parallel()

	s := NewStripe("sk_test_123", "https://shop.example.com")

	tests := []struct {
		code string
		want Outcome
	}{
		{code: "checkout.session.completed", want: OutcomeSuccess},
		{code: "checkout.session.expired", want: OutcomeCancelled},
		{code: "payment_intent.payment_failed", want: OutcomeFailed},
		{code: "something.else", want: OutcomeFailed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.code, func(t *testing.T) {
			t.Parallel()
			if got := s.MapResponseCode(tc.code); got != tc.want {
				t.Fatalf("MapResponseCode(%q) = %v, want %v", tc.code, got, tc.want)
			}
		})
	}
}
