package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aimstoreapp/aimstore/internal/models"
)

type fakeOrderReader struct {
	order *models.Order
	err   error
}

func (f *fakeOrderReader) GetByID(context.Context, uuid.UUID) (*models.Order, error) {
	return f.order, f.err
}

func payableOrder() *models.Order {
	rush := time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC)
	return &models.Order{
		ID:     uuid.New(),
		Status: models.OrderStatusPendingPayment,
		Items: []models.OrderItem{
			{ProductID: uuid.New(), Title: "The Go Programming Language", UnitPrice: 120000, Quantity: 1},
			{ProductID: uuid.New(), Title: "Blank CD pack", UnitPrice: 15000, Quantity: 2},
		},
		DeliveryFee: 22000,
		Delivery: &models.DeliveryInfo{
			Recipient: "Nguyen Van A",
			Phone:     "0912345678",
			Email:     "a.nguyen@example.com",
			Address:   "12 Hai Ba Trung",
			Province:  "Hanoi",
			Rush:      true,
			RushTime:  &rush,
		},
	}
}

func TestValidateForPayment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*models.Order)
		wantField string
	}{
		{
			name:   "complete order passes",
			mutate: func(o *models.Order) {},
		},
		{
			name:      "wrong status",
			mutate:    func(o *models.Order) { o.Status = models.OrderStatusApproved },
			wantField: "status",
		},
		{
			name:      "no line items",
			mutate:    func(o *models.Order) { o.Items = nil },
			wantField: "items",
		},
		{
			name:      "non-positive quantity",
			mutate:    func(o *models.Order) { o.Items[0].Quantity = 0 },
			wantField: "items",
		},
		{
			name:      "non-positive unit price",
			mutate:    func(o *models.Order) { o.Items[1].UnitPrice = -5 },
			wantField: "items",
		},
		{
			name:      "missing delivery info",
			mutate:    func(o *models.Order) { o.Delivery = nil },
			wantField: "delivery_info",
		},
		{
			name:      "invalid delivery email",
			mutate:    func(o *models.Order) { o.Delivery.Email = "not-an-email" },
			wantField: "delivery_info",
		},
		{
			name:      "rush delivery without rush time",
			mutate:    func(o *models.Order) { o.Delivery.RushTime = nil },
			wantField: "delivery_info",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			order := payableOrder()
			tc.mutate(order)
			svc := NewValidationService(&fakeOrderReader{order: order}, testLogger())

			got, err := svc.ValidateForPayment(context.Background(), order.ID)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateForPayment() error = %v", err)
				}
				if got.Total <= 0 {
					t.Fatalf("recomputed total = %d, want positive", got.Total)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateForPayment() error = %v, want ValidationError", err)
			}
			if verr.Field != tc.wantField {
				t.Errorf("ValidationError field = %q, want %q", verr.Field, tc.wantField)
			}
		})
	}
}

func TestValidateForPaymentRecomputesTotals(t *testing.T) {
	t.Parallel()

	order := payableOrder()
	order.Total = 1 // stale client-supplied figure, must be ignored
	svc := NewValidationService(&fakeOrderReader{order: order}, testLogger())

	got, err := svc.ValidateForPayment(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("ValidateForPayment() error = %v", err)
	}
	// 150000 subtotal, plus 10% VAT, plus 22000 delivery fee.
	if got.Total != 187000 {
		t.Fatalf("recomputed total = %d, want 187000", got.Total)
	}
}

func TestValidateForPaymentMissingOrder(t *testing.T) {
	t.Parallel()

	svc := NewValidationService(&fakeOrderReader{err: pgx.ErrNoRows}, testLogger())

	_, err := svc.ValidateForPayment(context.Background(), uuid.New())
	var nferr *NotFoundError
	if !errors.As(err, &nferr) {
		t.Fatalf("ValidateForPayment() error = %v, want NotFoundError", err)
	}
}

func TestIsReadyForPayment(t *testing.T) {
	t.Parallel()

	ready := payableOrder()
	notReady := payableOrder()
	notReady.Delivery = nil

	tests := []struct {
		name    string
		reader  *fakeOrderReader
		want    bool
		wantErr bool
	}{
		{"ready order", &fakeOrderReader{order: ready}, true, false},
		{"validation failure collapses to false", &fakeOrderReader{order: notReady}, false, false},
		{"missing order collapses to false", &fakeOrderReader{err: pgx.ErrNoRows}, false, false},
		{"infrastructure error surfaces", &fakeOrderReader{err: errors.New("connection refused")}, false, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := NewValidationService(tc.reader, testLogger())
			got, err := svc.IsReadyForPayment(context.Background(), uuid.New())
			if (err != nil) != tc.wantErr {
				t.Fatalf("IsReadyForPayment() error = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("IsReadyForPayment() = %v, want %v", got, tc.want)
			}
		})
	}
}
