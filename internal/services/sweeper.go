package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aimstoreapp/aimstore/internal/db"
	"github.com/aimstoreapp/aimstore/internal/models"
)

const sweepBatchSize = 100

type stalePendingLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*models.PaymentTransaction, error)
	Finalize(ctx context.Context, id uuid.UUID, status models.TransactionStatus, externalID, content string) error
}

// Sweeper expires PENDING transactions whose gateway never called back, so
// abandoned checkouts do not hold their orders in limbo forever.
type Sweeper struct {
	transactions stalePendingLister
	stateMachine stateMachine
	interval     time.Duration
	maxAge       time.Duration
	logger       *slog.Logger
}

func NewSweeper(transactions stalePendingLister, sm stateMachine, interval, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		transactions: transactions,
		stateMachine: sm,
		interval:     interval,
		maxAge:       maxAge,
		logger:       logger,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("pending transaction sweep started",
		"interval", s.interval.String(), "max_age", s.maxAge.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("pending transaction sweep stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.maxAge)
	stale, err := s.transactions.ListStalePending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		s.logger.Error("failed to list stale pending transactions", "error", err)
		return
	}
	for _, txn := range stale {
		err := s.transactions.Finalize(ctx, txn.ID, models.TransactionStatusFailed, "", "expired: no gateway confirmation received")
		if errors.Is(err, db.ErrTransactionFinal) {
			// A notification settled it between listing and now.
			continue
		}
		if err != nil {
			s.logger.Error("failed to expire stale transaction", "transaction_id", txn.ID, "error", err)
			continue
		}
		s.logger.Info("expired stale pending transaction",
			"transaction_id", txn.ID, "order_id", txn.OrderID, "age", time.Since(txn.CreatedAt).String())
		if err := s.stateMachine.Apply(ctx, txn.OrderID, EventPaymentFailed); err != nil {
			s.logger.Warn("failed to mark order payment failed after expiry",
				"order_id", txn.OrderID, "error", err)
		}
	}
}
