package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimstoreapp/aimstore/internal/models"
)

// PaymentMethodStore is read-only; account management owns the table.
type PaymentMethodStore struct {
	pool *pgxpool.Pool
}

func NewPaymentMethodStore(pool *pgxpool.Pool) *PaymentMethodStore {
	return &PaymentMethodStore{pool: pool}
}

func (s *PaymentMethodStore) GetByID(ctx context.Context, id uuid.UUID) (*PaymentMethod, error) {
	var (
		method     PaymentMethod
		methodType string
		ownerID    pgtype.UUID
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, type, owner_id FROM payment_methods WHERE id = $1
	`, id).Scan(&method.ID, &methodType, &ownerID)
	if err != nil {
		return nil, err
	}
	method.Type = models.PaymentMethodType(methodType)
	if ownerID.Valid {
		owner := uuid.UUID(ownerID.Bytes)
		method.OwnerID = &owner
	}
	return &method, nil
}
