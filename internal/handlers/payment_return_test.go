package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aimstoreapp/aimstore/internal/db"
	"github.com/aimstoreapp/aimstore/internal/models"
)

type stubOrderStore struct {
	order *db.Order
}

func (s *stubOrderStore) Create(context.Context, *db.Order) error { return nil }

func (s *stubOrderStore) GetByID(context.Context, uuid.UUID) (*db.Order, error) {
	if s.order == nil {
		return nil, pgx.ErrNoRows
	}
	return s.order, nil
}

func (s *stubOrderStore) SetDeliveryInfo(context.Context, uuid.UUID, *db.DeliveryInfo, int64, int64, int64, int64) error {
	return nil
}

func TestPaymentReturn(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	ref := orderID.String() + "_1756712345"

	tests := []struct {
		name       string
		status     models.OrderStatus
		query      string
		wantPhrase string
	}{
		{"approved order shows success", models.OrderStatusApproved, "np_TxnRef=" + ref, "Payment received"},
		{"failed order shows failure", models.OrderStatusPaymentFailed, "np_TxnRef=" + ref, "Payment did not complete"},
		{"unsettled order shows processing", models.OrderStatusPendingProcessing, "np_TxnRef=" + ref, "being processed"},
		{"garbage reference still renders", models.OrderStatusApproved, "np_TxnRef=garbage", "being processed"},
		{"missing reference still renders", models.OrderStatusApproved, "", "being processed"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := &Handlers{
				orderStore: &stubOrderStore{order: &db.Order{ID: orderID, Status: tc.status}},
				logger:     testLogger(),
			}

			req := httptest.NewRequest(http.MethodGet, "/payment/return?"+tc.query, nil)
			rec := httptest.NewRecorder()
			h.PaymentReturn(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tc.wantPhrase) {
				t.Fatalf("body does not contain %q:\n%s", tc.wantPhrase, rec.Body.String())
			}
		})
	}
}

func TestPaymentReturnUnknownOrder(t *testing.T) {
	t.Parallel()

	h := &Handlers{
		orderStore: &stubOrderStore{},
		logger:     testLogger(),
	}

	unknownID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/payment/return?np_TxnRef="+unknownID.String()+"_1756712345", nil)
	rec := httptest.NewRecorder()
	h.PaymentReturn(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), unknownID.String()) {
		t.Fatal("page must not echo unknown order references")
	}
}
