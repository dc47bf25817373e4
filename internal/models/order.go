package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPendingDeliveryInfo OrderStatus = "pending_delivery_info"
	OrderStatusPendingPayment      OrderStatus = "pending_payment"
	OrderStatusPendingProcessing   OrderStatus = "pending_processing"
	OrderStatusApproved            OrderStatus = "approved"
	OrderStatusShipping            OrderStatus = "shipping"
	OrderStatusDelivered           OrderStatus = "delivered"
	OrderStatusCancelled           OrderStatus = "cancelled"
	OrderStatusRejected            OrderStatus = "rejected"
	OrderStatusPaymentFailed       OrderStatus = "payment_failed"
	OrderStatusStockUpdateFailed   OrderStatus = "error_stock_update_failed"
)

// IsTerminal reports whether no further status transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusRejected, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// VATRatePercent is the tax rate applied to the order subtotal, in percent.
// Kept as an integer so totals stay exact at any subtotal.
const VATRatePercent = 10

// RushDeliverySurcharge is the per-item surcharge for rush delivery, in VND.
const RushDeliverySurcharge = 10_000

type Order struct {
	ID              uuid.UUID     `json:"id"`
	CustomerID      uuid.UUID     `json:"customer_id"`
	Items           []OrderItem   `json:"items"`
	Delivery        *DeliveryInfo `json:"delivery"`
	Subtotal        int64         `json:"subtotal"`
	SubtotalInclVAT int64         `json:"subtotal_incl_vat"`
	DeliveryFee     int64         `json:"delivery_fee"`
	Total           int64         `json:"total"`
	RejectionReason string        `json:"rejection_reason"`
	Status          OrderStatus   `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	PaidAt          time.Time     `json:"paid_at"`
	ShippedAt       time.Time     `json:"shipped_at"`
	DeliveredAt     time.Time     `json:"delivered_at"`
}

type OrderItem struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Title     string    `json:"title"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
}

type DeliveryInfo struct {
	Recipient    string     `json:"recipient" validate:"required"`
	Phone        string     `json:"phone" validate:"required,min=8,max=15"`
	Email        string     `json:"email" validate:"required,email"`
	Address      string     `json:"address" validate:"required"`
	Province     string     `json:"province" validate:"required"`
	Instructions string     `json:"instructions"`
	Rush         bool       `json:"rush"`
	RushTime     *time.Time `json:"rush_time" validate:"required_if=Rush true"`
}

// RecomputeTotals derives all money fields from the item snapshot and the
// delivery fee. Client-supplied totals are never trusted.
func (o *Order) RecomputeTotals() {
	var subtotal int64
	for _, item := range o.Items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	o.Subtotal = subtotal
	o.SubtotalInclVAT = subtotal + subtotal*VATRatePercent/100
	o.Total = o.SubtotalInclVAT + o.DeliveryFee
}

// ComputeDeliveryFee returns the delivery fee for an order: the base fee for
// the destination province plus the rush surcharge for each item when rush
// delivery is requested.
func ComputeDeliveryFee(items []OrderItem, delivery *DeliveryInfo, baseFee int64) int64 {
	fee := baseFee
	if delivery != nil && delivery.Rush {
		fee += RushDeliverySurcharge * int64(len(items))
	}
	return fee
}
