package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aimstoreapp/aimstore/internal/db"
	"github.com/aimstoreapp/aimstore/internal/models"
)

type fakeStaleLister struct {
	stale       []*models.PaymentTransaction
	finalizeErr map[uuid.UUID]error
	finalized   []uuid.UUID
	cutoff      time.Time
}

func (f *fakeStaleLister) ListStalePending(_ context.Context, cutoff time.Time, _ int) ([]*models.PaymentTransaction, error) {
	f.cutoff = cutoff
	return f.stale, nil
}

func (f *fakeStaleLister) Finalize(_ context.Context, id uuid.UUID, status models.TransactionStatus, _, _ string) error {
	if err := f.finalizeErr[id]; err != nil {
		return err
	}
	if status != models.TransactionStatusFailed {
		panic("sweep must only expire to failed")
	}
	f.finalized = append(f.finalized, id)
	return nil
}

func TestSweepExpiresStaleTransactions(t *testing.T) {
	t.Parallel()

	stale := []*models.PaymentTransaction{
		{ID: uuid.New(), OrderID: uuid.New(), Status: models.TransactionStatusPending, CreatedAt: time.Now().Add(-2 * time.Hour)},
		{ID: uuid.New(), OrderID: uuid.New(), Status: models.TransactionStatusPending, CreatedAt: time.Now().Add(-3 * time.Hour)},
	}
	lister := &fakeStaleLister{stale: stale}
	sm := &fakeStateMachine{}
	s := NewSweeper(lister, sm, time.Minute, time.Hour, testLogger())

	s.sweep(context.Background())

	if len(lister.finalized) != 2 {
		t.Fatalf("finalized %d transactions, want 2", len(lister.finalized))
	}
	if len(sm.events) != 2 {
		t.Fatalf("state machine events = %v, want two payment_failed", sm.events)
	}
	for _, ev := range sm.events {
		if ev != EventPaymentFailed {
			t.Fatalf("event = %s, want payment_failed", ev)
		}
	}
	if age := time.Since(lister.cutoff); age < 59*time.Minute || age > 61*time.Minute {
		t.Fatalf("cutoff is %s old, want about one hour", age)
	}
}

func TestSweepSkipsConcurrentlySettledTransaction(t *testing.T) {
	t.Parallel()

	settled := &models.PaymentTransaction{ID: uuid.New(), OrderID: uuid.New(), CreatedAt: time.Now().Add(-2 * time.Hour)}
	lister := &fakeStaleLister{
		stale:       []*models.PaymentTransaction{settled},
		finalizeErr: map[uuid.UUID]error{settled.ID: db.ErrTransactionFinal},
	}
	sm := &fakeStateMachine{}
	s := NewSweeper(lister, sm, time.Minute, time.Hour, testLogger())

	s.sweep(context.Background())

	if len(lister.finalized) != 0 {
		t.Fatal("settled transaction must not be expired")
	}
	if len(sm.events) != 0 {
		t.Fatalf("state machine events = %v, want none", sm.events)
	}
}
