package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/aimstoreapp/aimstore/internal/db"
	"github.com/aimstoreapp/aimstore/internal/models"
)

type fakeTransitioner struct {
	err     error
	orderID uuid.UUID
	from    []models.OrderStatus
	to      models.OrderStatus
	reason  string
	calls   int
}

func (f *fakeTransitioner) TransitionStatus(_ context.Context, orderID uuid.UUID, from []models.OrderStatus, to models.OrderStatus, reason string) error {
	f.calls++
	f.orderID = orderID
	f.from = from
	f.to = to
	f.reason = reason
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		from  models.OrderStatus
		event Event
		want  bool
	}{
		{"delivery info from new order", models.OrderStatusPendingDeliveryInfo, EventDeliveryInfoSaved, true},
		{"delivery info can be edited before payment", models.OrderStatusPendingPayment, EventDeliveryInfoSaved, true},
		{"redirect from pending payment", models.OrderStatusPendingPayment, EventPaymentRedirectIssued, true},
		{"retry after failed payment", models.OrderStatusPaymentFailed, EventPaymentRedirectIssued, true},
		{"success from pending processing", models.OrderStatusPendingProcessing, EventPaymentSucceeded, true},
		{"failure from pending processing", models.OrderStatusPendingProcessing, EventPaymentFailed, true},
		{"ship approved order", models.OrderStatusApproved, EventShipped, true},
		{"deliver shipping order", models.OrderStatusShipping, EventDelivered, true},
		{"reject order awaiting reconciliation", models.OrderStatusPendingProcessing, EventRejected, true},
		{"cancel before payment settles", models.OrderStatusPendingProcessing, EventCancelled, true},
		{"stock failure on approved order", models.OrderStatusApproved, EventStockUpdateFailed, true},
		{"stock recovery", models.OrderStatusStockUpdateFailed, EventStockRecovered, true},

		{"cannot ship unpaid order", models.OrderStatusPendingPayment, EventShipped, false},
		{"cannot cancel approved order", models.OrderStatusApproved, EventCancelled, false},
		{"cannot cancel after failed payment", models.OrderStatusPaymentFailed, EventCancelled, false},
		{"cannot reject unpaid order", models.OrderStatusPendingPayment, EventRejected, false},
		{"cannot reject settled order", models.OrderStatusApproved, EventRejected, false},
		{"success cannot skip the redirect", models.OrderStatusPendingPayment, EventPaymentSucceeded, false},
		{"failure cannot skip the redirect", models.OrderStatusPendingPayment, EventPaymentFailed, false},
		{"cancelled is terminal", models.OrderStatusCancelled, EventPaymentSucceeded, false},
		{"delivered is terminal", models.OrderStatusDelivered, EventShipped, false},
		{"rejected is terminal", models.OrderStatusRejected, EventShipped, false},
		{"success cannot arrive on delivered order", models.OrderStatusDelivered, EventPaymentSucceeded, false},
		{"unknown event", models.OrderStatusApproved, Event("bogus"), false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Allowed(tc.from, tc.event); got != tc.want {
				t.Fatalf("Allowed(%s, %s) = %v, want %v", tc.from, tc.event, got, tc.want)
			}
		})
	}
}

func TestApplyPassesTransitionToStore(t *testing.T) {
	t.Parallel()

	store := &fakeTransitioner{}
	m := NewOrderStateMachine(store, testLogger())
	orderID := uuid.New()

	if err := m.Apply(context.Background(), orderID, EventPaymentSucceeded); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("store called %d times, want 1", store.calls)
	}
	if store.orderID != orderID {
		t.Errorf("store got order %s, want %s", store.orderID, orderID)
	}
	if store.to != models.OrderStatusApproved {
		t.Errorf("store got target %s, want %s", store.to, models.OrderStatusApproved)
	}
	if len(store.from) != 1 || store.from[0] != models.OrderStatusPendingProcessing {
		t.Errorf("store got source statuses %v, want [pending_processing]", store.from)
	}
}

func TestApplyPropagatesIllegalTransition(t *testing.T) {
	t.Parallel()

	store := &fakeTransitioner{err: db.ErrInvalidStatusTransition}
	m := NewOrderStateMachine(store, testLogger())

	err := m.Apply(context.Background(), uuid.New(), EventShipped)
	if !errors.Is(err, db.ErrInvalidStatusTransition) {
		t.Fatalf("Apply() error = %v, want ErrInvalidStatusTransition", err)
	}
}

func TestApplyRefusesUnknownEvent(t *testing.T) {
	t.Parallel()

	store := &fakeTransitioner{}
	m := NewOrderStateMachine(store, testLogger())

	if err := m.Apply(context.Background(), uuid.New(), Event("bogus")); err == nil {
		t.Fatal("Apply() accepted an unknown event")
	}
	if store.calls != 0 {
		t.Fatalf("store called %d times for unknown event, want 0", store.calls)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	t.Parallel()

	store := &fakeTransitioner{}
	m := NewOrderStateMachine(store, testLogger())

	err := m.Reject(context.Background(), uuid.New(), "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Reject() error = %v, want ValidationError", err)
	}
	if store.calls != 0 {
		t.Fatal("store should not be called without a reason")
	}

	if err := m.Reject(context.Background(), uuid.New(), "item damaged in stock check"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if store.reason != "item damaged in stock check" {
		t.Errorf("store got reason %q", store.reason)
	}
	if store.to != models.OrderStatusRejected {
		t.Errorf("store got target %s, want %s", store.to, models.OrderStatusRejected)
	}
}

func TestApplyRejectedEventRequiresRejectMethod(t *testing.T) {
	t.Parallel()

	store := &fakeTransitioner{}
	m := NewOrderStateMachine(store, testLogger())

	if err := m.Apply(context.Background(), uuid.New(), EventRejected); err == nil {
		t.Fatal("Apply() accepted EventRejected without a reason")
	}
}
