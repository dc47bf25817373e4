package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimstoreapp/aimstore/internal/models"
)

// ErrTransactionFinal is returned when a finalize attempt hits a transaction
// that already reached SUCCESS or FAILED. Callers treat it as the idempotent
// no-op path.
var ErrTransactionFinal = errors.New("payment transaction already finalized")

type TransactionStore struct {
	pool *pgxpool.Pool
}

func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

func (s *TransactionStore) Create(ctx context.Context, txn *PaymentTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO payment_transactions (id, order_id, method_id, type, provider, amount, status, gateway_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, txn.ID, txn.OrderID, txn.MethodID, string(txn.Type), txn.Provider, txn.Amount, string(txn.Status), txn.GatewayRef)
	if err := row.Scan(&txn.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert payment transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id uuid.UUID) (*PaymentTransaction, error) {
	return s.get(ctx, `WHERE id = $1`, id)
}

// GetByOrderID returns the most recent payment transaction for an order.
func (s *TransactionStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*PaymentTransaction, error) {
	return s.get(ctx, `WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID)
}

func (s *TransactionStore) get(ctx context.Context, where string, arg any) (*PaymentTransaction, error) {
	var (
		txn         PaymentTransaction
		txnType     string
		status      string
		gatewayRef  pgtype.Text
		externalID  pgtype.Text
		content     pgtype.Text
		createdAt   pgtype.Timestamptz
		completedAt pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_id, method_id, type, provider, amount, status,
		       gateway_ref, external_id, content, created_at, completed_at
		FROM payment_transactions `+where,
		arg,
	).Scan(
		&txn.ID, &txn.OrderID, &txn.MethodID, &txnType, &txn.Provider, &txn.Amount, &status,
		&gatewayRef, &externalID, &content, &createdAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Type = models.TransactionType(txnType)
	txn.Status = TransactionStatus(status)
	if gatewayRef.Valid {
		txn.GatewayRef = gatewayRef.String
	}
	if externalID.Valid {
		txn.ExternalID = externalID.String
	}
	if content.Valid {
		txn.Content = content.String
	}
	txn.CreatedAt = createdAt.Time
	if completedAt.Valid {
		txn.CompletedAt = completedAt.Time
	}
	return &txn, nil
}

func (s *TransactionStore) SetGatewayRef(ctx context.Context, id uuid.UUID, ref string) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE payment_transactions SET gateway_ref = $1 WHERE id = $2 AND status = 'pending'
	`, ref, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrTransactionFinal
	}
	return nil
}

// HasActive reports whether the order has a non-terminal payment transaction.
func (s *TransactionStore) HasActive(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM payment_transactions WHERE order_id = $1 AND status = 'pending')
	`, orderID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Finalize moves a PENDING transaction to a terminal status. The UPDATE is a
// compare-and-swap on status = 'pending': of two concurrent reconcilers
// exactly one wins, the other gets ErrTransactionFinal.
func (s *TransactionStore) Finalize(ctx context.Context, id uuid.UUID, status TransactionStatus, externalID, content string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finalize requires a terminal status, got %q", status)
	}

	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE payment_transactions
		SET status = $1, external_id = $2, content = $3, completed_at = NOW()
		WHERE id = $4 AND status = 'pending'
	`, string(status), externalID, content, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = s.pool.QueryRow(ctx, `SELECT status FROM payment_transactions WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return pgx.ErrNoRows
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: status %s", ErrTransactionFinal, current)
}

// ListStalePending returns PENDING transactions created before the cutoff,
// for the reconciliation sweep.
func (s *TransactionStore) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*PaymentTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, method_id, type, provider, amount, status,
		       gateway_ref, external_id, content, created_at, completed_at
		FROM payment_transactions
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*PaymentTransaction
	for rows.Next() {
		var (
			txn         PaymentTransaction
			txnType     string
			status      string
			gatewayRef  pgtype.Text
			externalID  pgtype.Text
			content     pgtype.Text
			createdAt   pgtype.Timestamptz
			completedAt pgtype.Timestamptz
		)
		if err := rows.Scan(
			&txn.ID, &txn.OrderID, &txn.MethodID, &txnType, &txn.Provider, &txn.Amount, &status,
			&gatewayRef, &externalID, &content, &createdAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		txn.Type = models.TransactionType(txnType)
		txn.Status = TransactionStatus(status)
		if gatewayRef.Valid {
			txn.GatewayRef = gatewayRef.String
		}
		if externalID.Valid {
			txn.ExternalID = externalID.String
		}
		if content.Valid {
			txn.Content = content.String
		}
		txn.CreatedAt = createdAt.Time
		if completedAt.Valid {
			txn.CompletedAt = completedAt.Time
		}
		txns = append(txns, &txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txns, nil
}
