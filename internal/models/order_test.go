package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestOrderStatusIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := []OrderStatus{OrderStatusCancelled, OrderStatusRejected, OrderStatusDelivered}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Errorf("expected %s to be terminal", status)
		}
	}

	open := []OrderStatus{
		OrderStatusPendingDeliveryInfo,
		OrderStatusPendingPayment,
		OrderStatusPendingProcessing,
		OrderStatusApproved,
		OrderStatusShipping,
		OrderStatusPaymentFailed,
		OrderStatusStockUpdateFailed,
	}
	for _, status := range open {
		if status.IsTerminal() {
			t.Errorf("expected %s to allow further transitions", status)
		}
	}
}

func TestRecomputeTotals(t *testing.T) {
	t.Parallel()

	order := &Order{
		Items: []OrderItem{
			{ProductID: uuid.New(), UnitPrice: 120_000, Quantity: 1},
			{ProductID: uuid.New(), UnitPrice: 15_000, Quantity: 2},
		},
		DeliveryFee: 22_000,
		// client-supplied totals must be discarded
		Subtotal: 1,
		Total:    1,
	}

	order.RecomputeTotals()

	if order.Subtotal != 150_000 {
		t.Fatalf("unexpected subtotal: %d", order.Subtotal)
	}
	if order.SubtotalInclVAT != 165_000 {
		t.Fatalf("unexpected subtotal incl VAT: %d", order.SubtotalInclVAT)
	}
	if order.Total != 187_000 {
		t.Fatalf("unexpected total: %d", order.Total)
	}
}

func TestRecomputeTotalsStaysExactOnLargeSubtotals(t *testing.T) {
	t.Parallel()

	// Integer VAT math must hold to the dong well past the range where
	// float64 multiplication starts rounding.
	order := &Order{
		Items: []OrderItem{
			{ProductID: uuid.New(), UnitPrice: 1_234_567_890_123, Quantity: 1},
		},
	}
	order.RecomputeTotals()

	const wantVAT = 1_234_567_890_123 * VATRatePercent / 100
	if got := order.SubtotalInclVAT - order.Subtotal; got != wantVAT {
		t.Fatalf("VAT = %d, want %d", got, wantVAT)
	}
	if order.Total != order.SubtotalInclVAT {
		t.Fatalf("total = %d, want %d", order.Total, order.SubtotalInclVAT)
	}
}

func TestRecomputeTotalsEmptyOrder(t *testing.T) {
	t.Parallel()

	order := &Order{}
	order.RecomputeTotals()

	if order.Subtotal != 0 || order.SubtotalInclVAT != 0 || order.Total != 0 {
		t.Fatalf("expected zero totals, got %+v", order)
	}
}

func TestComputeDeliveryFee(t *testing.T) {
	t.Parallel()

	items := []OrderItem{
		{UnitPrice: 50_000, Quantity: 1},
		{UnitPrice: 80_000, Quantity: 3},
	}

	if fee := ComputeDeliveryFee(items, &DeliveryInfo{}, 22_000); fee != 22_000 {
		t.Fatalf("unexpected standard fee: %d", fee)
	}

	rushAt := time.Now().Add(4 * time.Hour)
	rush := &DeliveryInfo{Rush: true, RushTime: &rushAt}
	if fee := ComputeDeliveryFee(items, rush, 22_000); fee != 42_000 {
		t.Fatalf("unexpected rush fee: %d", fee)
	}

	if fee := ComputeDeliveryFee(items, nil, 22_000); fee != 22_000 {
		t.Fatalf("unexpected fee without delivery info: %d", fee)
	}
}
