package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// IsTerminal reports whether the transaction has reached a final state.
// Terminal transactions are never mutated again; a repeated gateway
// notification for one is acknowledged as already processed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

type TransactionType string

const (
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeRefund  TransactionType = "refund"
)

type PaymentTransaction struct {
	ID          uuid.UUID         `json:"id"`
	OrderID     uuid.UUID         `json:"order_id"`
	MethodID    uuid.UUID         `json:"method_id"`
	Type        TransactionType   `json:"type"`
	Provider    string            `json:"provider"`
	Amount      int64             `json:"amount"`
	Status      TransactionStatus `json:"status"`
	GatewayRef  string            `json:"gateway_ref"`
	ExternalID  string            `json:"external_id"`
	Content     string            `json:"content"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

type PaymentMethodType string

const (
	MethodDomesticCard      PaymentMethodType = "domestic_card"
	MethodInternationalCard PaymentMethodType = "international_card"
)

// PaymentMethod is read-only from this core's perspective; account management
// owns the table. OwnerID is nil for guest checkout.
type PaymentMethod struct {
	ID      uuid.UUID         `json:"id"`
	Type    PaymentMethodType `json:"type"`
	OwnerID *uuid.UUID        `json:"owner_id"`
}
