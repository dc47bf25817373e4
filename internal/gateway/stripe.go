package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/aimstoreapp/aimstore/internal/models"
	"github.com/aimstoreapp/aimstore/internal/observability"
)

// ProviderStripe identifies the international card gateway.
const ProviderStripe = "stripe"

// Stripe implements Provider for international card payments via Stripe
// Checkout. Callback authenticity is handled by Stripe's own webhook
// signature scheme at the transport layer, so VerifySignature always fails
// closed here.
type Stripe struct {
	client  *stripe.Client
	baseURL string
}

func NewStripe(secretKey, baseURL string) *Stripe {
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient: observability.NewHTTPClient(30 * time.Second),
	})
	client := stripe.NewClient(secretKey, stripe.WithBackends(backends))
	return &Stripe{
		client:  client,
		baseURL: baseURL,
	}
}

func (s *Stripe) Name() string {
	return ProviderStripe
}

func (s *Stripe) BuildPaymentRequest(ctx context.Context, order *models.Order, method *models.PaymentMethod, client ClientContext) (string, string, error) {
	if ctx == nil {
		return "", "", fmt.Errorf("context is required")
	}
	if order == nil {
		return "", "", fmt.Errorf("order is required")
	}
	if order.Total <= 0 {
		return "", "", fmt.Errorf("order total must be positive, got %d", order.Total)
	}

	txnRef := fmt.Sprintf("%s_%s", order.ID, stripeNonce())

	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(order.Items)+1)
	for _, item := range order.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				// VND is a zero-decimal currency in Stripe.
				Currency: stripe.String("vnd"),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Title),
				},
				UnitAmount: stripe.Int64(item.UnitPrice),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	// VAT as its own line so the session total equals the recorded
	// transaction amount to the dong.
	if vat := order.SubtotalInclVAT - order.Subtotal; vat > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String("vnd"),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String("VAT"),
				},
				UnitAmount: stripe.Int64(vat),
			},
			Quantity: stripe.Int64(1),
		})
	}

	sessionParams := &stripe.CheckoutSessionCreateParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(fmt.Sprintf("%s/payment/return?provider=%s&ref=%s", s.baseURL, ProviderStripe, txnRef)),
		CancelURL:          stripe.String(fmt.Sprintf("%s/payment/return?provider=%s&ref=%s", s.baseURL, ProviderStripe, txnRef)),
		LineItems:          lineItems,
		ShippingOptions: []*stripe.CheckoutSessionCreateShippingOptionParams{
			{
				ShippingRateData: &stripe.CheckoutSessionCreateShippingOptionShippingRateDataParams{
					DisplayName: stripe.String("Delivery"),
					Type:        stripe.String(string(stripe.ShippingRateTypeFixedAmount)),
					FixedAmount: &stripe.CheckoutSessionCreateShippingOptionShippingRateDataFixedAmountParams{
						Amount:   stripe.Int64(order.DeliveryFee),
						Currency: stripe.String("vnd"),
					},
				},
			},
		},
		Metadata: map[string]string{
			"order_id": order.ID.String(),
			"txn_ref":  txnRef,
		},
	}

	sess, err := s.client.V1CheckoutSessions.Create(ctx, sessionParams)
	if err != nil {
		return "", "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess.URL, txnRef, nil
}

func stripeNonce() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

func (s *Stripe) VerifySignature(params map[string]string) bool {
	_ = params
	return false
}

func (s *Stripe) MapResponseCode(code string) Outcome {
	switch code {
	case "checkout.session.completed":
		return OutcomeSuccess
	case "checkout.session.expired":
		return OutcomeCancelled
	case "payment_intent.payment_failed":
		return OutcomeFailed
	default:
		return OutcomeFailed
	}
}
