// Package email provides email templates.
package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
)

// PaymentInfo carries everything the payment outcome templates render.
type PaymentInfo struct {
	OrderID       string
	RecipientName string
	Email         string
	Amount        string
	PaidAt        string
	Reason        string
}

var paymentReceiptText = template.Must(template.New("payment_receipt").Parse(`Hi {{.RecipientName}},

We received your payment of {{.Amount}} VND for order {{.OrderID}}{{if .PaidAt}} on {{.PaidAt}}{{end}}.

Your order is approved and will be prepared for shipping.

Thank you for shopping with us.
`))

var paymentFailedText = template.Must(template.New("payment_failed").Parse(`Hi {{.RecipientName}},

Your payment for order {{.OrderID}} did not complete{{if .Reason}} ({{.Reason}}){{end}}.

No money was captured for this attempt. You can retry with a different
payment method from your order page.
`))

// SendPaymentReceipt emails the customer after a successful payment.
func SendPaymentReceipt(ctx context.Context, provider Provider, info PaymentInfo) error {
	body, err := render(paymentReceiptText, info)
	if err != nil {
		return err
	}
	return provider.SendEmail(ctx, &Email{
		To:      info.Email,
		Subject: fmt.Sprintf("Payment received for order %s", info.OrderID),
		Text:    body,
	})
}

// SendPaymentFailed emails the customer after a failed payment.
func SendPaymentFailed(ctx context.Context, provider Provider, info PaymentInfo) error {
	body, err := render(paymentFailedText, info)
	if err != nil {
		return err
	}
	return provider.SendEmail(ctx, &Email{
		To:      info.Email,
		Subject: fmt.Sprintf("Payment failed for order %s", info.OrderID),
		Text:    body,
	})
}

func render(tmpl *template.Template, info PaymentInfo) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, info); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}
