package services

import (
	"context"
	"strconv"

	"github.com/aimstoreapp/aimstore/internal/email"
	"github.com/aimstoreapp/aimstore/internal/models"
)

// OrderEmailSender notifies customers about payment outcomes. Delivery is
// best effort; callers log failures and move on.
type OrderEmailSender interface {
	SendPaymentReceipt(ctx context.Context, order *models.Order, txn *models.PaymentTransaction) error
	SendPaymentFailed(ctx context.Context, order *models.Order, txn *models.PaymentTransaction) error
}

// NoopOrderEmailSender is used when no email provider is configured.
type NoopOrderEmailSender struct{}

func (NoopOrderEmailSender) SendPaymentReceipt(context.Context, *models.Order, *models.PaymentTransaction) error {
	return nil
}

func (NoopOrderEmailSender) SendPaymentFailed(context.Context, *models.Order, *models.PaymentTransaction) error {
	return nil
}

// ProviderOrderEmailSender renders outcome emails through an email provider.
type ProviderOrderEmailSender struct {
	provider email.Provider
}

func NewProviderOrderEmailSender(provider email.Provider) *ProviderOrderEmailSender {
	return &ProviderOrderEmailSender{provider: provider}
}

func (s *ProviderOrderEmailSender) SendPaymentReceipt(ctx context.Context, order *models.Order, txn *models.PaymentTransaction) error {
	return email.SendPaymentReceipt(ctx, s.provider, paymentInfo(order, txn))
}

func (s *ProviderOrderEmailSender) SendPaymentFailed(ctx context.Context, order *models.Order, txn *models.PaymentTransaction) error {
	return email.SendPaymentFailed(ctx, s.provider, paymentInfo(order, txn))
}

func paymentInfo(order *models.Order, txn *models.PaymentTransaction) email.PaymentInfo {
	info := email.PaymentInfo{
		OrderID: order.ID.String(),
		Amount:  strconv.FormatInt(txn.Amount, 10),
		Reason:  txn.Content,
	}
	if order.Delivery != nil {
		info.RecipientName = order.Delivery.Recipient
		info.Email = order.Delivery.Email
	}
	if !txn.CompletedAt.IsZero() {
		info.PaidAt = txn.CompletedAt.Format("2006-01-02 15:04")
	}
	return info
}
