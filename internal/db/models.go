package db

import "github.com/aimstoreapp/aimstore/internal/models"

type Order = models.Order
type OrderItem = models.OrderItem
type DeliveryInfo = models.DeliveryInfo
type OrderStatus = models.OrderStatus
type PaymentTransaction = models.PaymentTransaction
type PaymentMethod = models.PaymentMethod
type TransactionStatus = models.TransactionStatus

const (
	OrderStatusPendingDeliveryInfo = models.OrderStatusPendingDeliveryInfo
	OrderStatusPendingPayment      = models.OrderStatusPendingPayment
	OrderStatusPendingProcessing   = models.OrderStatusPendingProcessing
	OrderStatusApproved            = models.OrderStatusApproved
	OrderStatusShipping            = models.OrderStatusShipping
	OrderStatusDelivered           = models.OrderStatusDelivered
	OrderStatusCancelled           = models.OrderStatusCancelled
	OrderStatusRejected            = models.OrderStatusRejected
	OrderStatusPaymentFailed       = models.OrderStatusPaymentFailed
	OrderStatusStockUpdateFailed   = models.OrderStatusStockUpdateFailed
)
