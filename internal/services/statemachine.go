package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aimstoreapp/aimstore/internal/logging"
	"github.com/aimstoreapp/aimstore/internal/models"
)

// Event is a lifecycle occurrence that may move an order between statuses.
type Event string

const (
	EventDeliveryInfoSaved     Event = "delivery_info_saved"
	EventPaymentRedirectIssued Event = "payment_redirect_issued"
	EventPaymentSucceeded      Event = "payment_succeeded"
	EventPaymentFailed         Event = "payment_failed"
	EventShipped               Event = "shipped"
	EventDelivered             Event = "delivered"
	EventCancelled             Event = "cancelled"
	EventRejected              Event = "rejected"
	EventStockUpdateFailed     Event = "stock_update_failed"
	EventStockRecovered        Event = "stock_recovered"
)

type transition struct {
	from []models.OrderStatus
	to   models.OrderStatus
}

// transitions is the single authority over which status changes exist.
// Anything not listed here is illegal and leaves the order untouched.
var transitions = map[Event]transition{
	EventDeliveryInfoSaved: {
		from: []models.OrderStatus{models.OrderStatusPendingDeliveryInfo, models.OrderStatusPendingPayment},
		to:   models.OrderStatusPendingPayment,
	},
	// payment_failed is included so a customer can retry with a fresh
	// payment method after a declined attempt.
	EventPaymentRedirectIssued: {
		from: []models.OrderStatus{models.OrderStatusPendingPayment, models.OrderStatusPaymentFailed},
		to:   models.OrderStatusPendingProcessing,
	},
	// Settlement events fire only from pending_processing: an order that
	// never produced a redirect has nothing for the gateway to settle.
	EventPaymentSucceeded: {
		from: []models.OrderStatus{models.OrderStatusPendingProcessing},
		to:   models.OrderStatusApproved,
	},
	EventPaymentFailed: {
		from: []models.OrderStatus{models.OrderStatusPendingProcessing},
		to:   models.OrderStatusPaymentFailed,
	},
	EventShipped: {
		from: []models.OrderStatus{models.OrderStatusApproved},
		to:   models.OrderStatusShipping,
	},
	EventDelivered: {
		from: []models.OrderStatus{models.OrderStatusShipping},
		to:   models.OrderStatusDelivered,
	},
	// Cancellation covers the pre-settlement statuses only. Once money
	// moved, undoing an order is a refund flow, not a cancel.
	EventCancelled: {
		from: []models.OrderStatus{
			models.OrderStatusPendingDeliveryInfo,
			models.OrderStatusPendingPayment,
			models.OrderStatusPendingProcessing,
		},
		to: models.OrderStatusCancelled,
	},
	EventRejected: {
		from: []models.OrderStatus{models.OrderStatusPendingProcessing},
		to:   models.OrderStatusRejected,
	},
	EventStockUpdateFailed: {
		from: []models.OrderStatus{models.OrderStatusApproved},
		to:   models.OrderStatusStockUpdateFailed,
	},
	EventStockRecovered: {
		from: []models.OrderStatus{models.OrderStatusStockUpdateFailed},
		to:   models.OrderStatusApproved,
	},
}

// Allowed reports whether event is legal from the given status. It mirrors
// the check the store enforces atomically at write time.
func Allowed(from models.OrderStatus, event Event) bool {
	tr, ok := transitions[event]
	if !ok {
		return false
	}
	for _, f := range tr.from {
		if f == from {
			return true
		}
	}
	return false
}

// Target returns the status an event lands on, independent of source status.
func Target(event Event) (models.OrderStatus, bool) {
	tr, ok := transitions[event]
	return tr.to, ok
}

type orderTransitioner interface {
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from []models.OrderStatus, to models.OrderStatus, reason string) error
}

// OrderStateMachine applies lifecycle events to orders. The check-then-write
// is delegated to the store so concurrent transitions cannot interleave.
type OrderStateMachine struct {
	orders orderTransitioner
	logger *slog.Logger
}

func NewOrderStateMachine(orders orderTransitioner, logger *slog.Logger) *OrderStateMachine {
	return &OrderStateMachine{orders: orders, logger: logger}
}

// Apply moves an order according to event. Rejections must go through
// Reject, which records the mandatory reason.
func (m *OrderStateMachine) Apply(ctx context.Context, orderID uuid.UUID, event Event) error {
	if event == EventRejected {
		return fmt.Errorf("rejection requires a reason, use Reject")
	}
	return m.apply(ctx, orderID, event, "")
}

// Reject moves an order awaiting reconciliation to rejected, recording why.
func (m *OrderStateMachine) Reject(ctx context.Context, orderID uuid.UUID, reason string) error {
	if reason == "" {
		return &ValidationError{Field: "reason", Reason: "is required when rejecting an order"}
	}
	return m.apply(ctx, orderID, EventRejected, reason)
}

func (m *OrderStateMachine) apply(ctx context.Context, orderID uuid.UUID, event Event, reason string) error {
	tr, ok := transitions[event]
	if !ok {
		return fmt.Errorf("unknown order event %q", event)
	}
	if err := m.orders.TransitionStatus(ctx, orderID, tr.from, tr.to, reason); err != nil {
		return err
	}
	logging.FromContext(ctx, m.logger).Info("order status transition",
		"order_id", orderID, "event", string(event), "to", string(tr.to))
	return nil
}
