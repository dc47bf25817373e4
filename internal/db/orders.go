package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimstoreapp/aimstore/internal/crypto"
)

var ErrInvalidStatusTransition = errors.New("invalid order status transition")

type OrderStore struct {
	pool      *pgxpool.Pool
	encryptor crypto.Encryptor
}

func NewOrderStore(pool *pgxpool.Pool, encryptor crypto.Encryptor) (*OrderStore, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	return &OrderStore{
		pool:      pool,
		encryptor: encryptor,
	}, nil
}

func (s *OrderStore) Create(ctx context.Context, order *Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.RecomputeTotals()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (id, customer_id, subtotal, subtotal_incl_vat, delivery_fee, total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, order.ID, order.CustomerID, order.Subtotal, order.SubtotalInclVAT, order.DeliveryFee, order.Total, string(order.Status))
	if err := row.Scan(&order.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, title, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, order.ID, item.ProductID, item.Title, item.UnitPrice, item.Quantity); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if order.Delivery != nil {
		if err := s.upsertDelivery(ctx, tx, order.ID, order.Delivery); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetByID loads the complete order aggregate (items and delivery info) within
// a single read transaction. Callers always receive a fully populated order
// or an error, never a partially loaded one.
func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	order := &Order{ID: orderID}
	var (
		status          string
		rejectionReason pgtype.Text
		createdAt       pgtype.Timestamptz
		paidAt          pgtype.Timestamptz
		shippedAt       pgtype.Timestamptz
		deliveredAt     pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx, `
		SELECT customer_id, subtotal, subtotal_incl_vat, delivery_fee, total,
		       rejection_reason, status, created_at, paid_at, shipped_at, delivered_at
		FROM orders WHERE id = $1
	`, orderID).Scan(
		&order.CustomerID, &order.Subtotal, &order.SubtotalInclVAT, &order.DeliveryFee, &order.Total,
		&rejectionReason, &status, &createdAt, &paidAt, &shippedAt, &deliveredAt,
	)
	if err != nil {
		return nil, err
	}
	order.Status = OrderStatus(status)
	if rejectionReason.Valid {
		order.RejectionReason = rejectionReason.String
	}
	order.CreatedAt = createdAt.Time
	if paidAt.Valid {
		order.PaidAt = paidAt.Time
	}
	if shippedAt.Valid {
		order.ShippedAt = shippedAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = deliveredAt.Time
	}

	rows, err := tx.Query(ctx, `
		SELECT id, product_id, title, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Title, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order items: %w", err)
	}
	rows.Close()

	delivery, err := s.loadDelivery(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	order.Delivery = delivery

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit read transaction: %w", err)
	}
	return order, nil
}

// SetDeliveryInfo stores delivery details and the recomputed totals for an
// order still in a pre-payment status. Contact fields are encrypted at rest.
func (s *OrderStore) SetDeliveryInfo(ctx context.Context, orderID uuid.UUID, delivery *DeliveryInfo, deliveryFee int64, subtotal, subtotalInclVAT, total int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders
		SET delivery_fee = $1, subtotal = $2, subtotal_incl_vat = $3, total = $4
		WHERE id = $5 AND status IN ('pending_delivery_info', 'pending_payment')
	`, deliveryFee, subtotal, subtotalInclVAT, total, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected pending_delivery_info/pending_payment", ErrInvalidStatusTransition)
	}

	if err := s.upsertDelivery(ctx, tx, orderID, delivery); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// TransitionStatus performs the atomic check-then-write for an order status
// change: the UPDATE only matches when the current status is in fromStatuses,
// so a concurrent writer cannot race past the precondition.
func (s *OrderStore) TransitionStatus(ctx context.Context, orderID uuid.UUID, fromStatuses []OrderStatus, to OrderStatus, reason string) error {
	from := make([]string, len(fromStatuses))
	for i, st := range fromStatuses {
		from[i] = string(st)
	}

	query := `
		UPDATE orders
		SET status = $1,
		    rejection_reason = CASE WHEN $1 = 'rejected' THEN $2 ELSE rejection_reason END,
		    paid_at = CASE WHEN $1 = 'approved' THEN NOW() ELSE paid_at END,
		    shipped_at = CASE WHEN $1 = 'shipping' THEN NOW() ELSE shipped_at END,
		    delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END
		WHERE id = $3 AND status = ANY($4)
	`
	cmdTag, err := s.pool.Exec(ctx, query, string(to), reason, orderID, from)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %s", ErrInvalidStatusTransition, strings.Join(from, "/"))
	}
	return nil
}

func (s *OrderStore) upsertDelivery(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, delivery *DeliveryInfo) error {
	phone, err := s.encryptor.Encrypt(delivery.Phone)
	if err != nil {
		return fmt.Errorf("failed to encrypt phone: %w", err)
	}
	email, err := s.encryptor.Encrypt(delivery.Email)
	if err != nil {
		return fmt.Errorf("failed to encrypt email: %w", err)
	}

	var rushTime pgtype.Timestamptz
	if delivery.RushTime != nil {
		rushTime = pgtype.Timestamptz{Time: *delivery.RushTime, Valid: true}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO delivery_info (order_id, recipient, phone, email, address, province, instructions, rush, rush_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (order_id) DO UPDATE SET
			recipient = EXCLUDED.recipient, phone = EXCLUDED.phone, email = EXCLUDED.email,
			address = EXCLUDED.address, province = EXCLUDED.province,
			instructions = EXCLUDED.instructions, rush = EXCLUDED.rush, rush_time = EXCLUDED.rush_time
	`, orderID, delivery.Recipient, phone, email, delivery.Address, delivery.Province, delivery.Instructions, delivery.Rush, rushTime)
	if err != nil {
		return fmt.Errorf("failed to upsert delivery info: %w", err)
	}
	return nil
}

func (s *OrderStore) loadDelivery(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*DeliveryInfo, error) {
	var (
		delivery     DeliveryInfo
		phone, email string
		instructions pgtype.Text
		rushTime     pgtype.Timestamptz
	)
	err := tx.QueryRow(ctx, `
		SELECT recipient, phone, email, address, province, instructions, rush, rush_time
		FROM delivery_info WHERE order_id = $1
	`, orderID).Scan(
		&delivery.Recipient, &phone, &email, &delivery.Address, &delivery.Province,
		&instructions, &delivery.Rush, &rushTime,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load delivery info: %w", err)
	}

	delivery.Phone, err = s.encryptor.Decrypt(phone)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt phone: %w", err)
	}
	delivery.Email, err = s.encryptor.Decrypt(email)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt email: %w", err)
	}
	if instructions.Valid {
		delivery.Instructions = instructions.String
	}
	if rushTime.Valid {
		t := rushTime.Time
		delivery.RushTime = &t
	}
	return &delivery, nil
}
