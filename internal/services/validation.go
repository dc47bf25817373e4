package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aimstoreapp/aimstore/internal/models"
)

// awaitablePaymentStatuses are the statuses from which an order may enter or
// retry payment.
var awaitablePaymentStatuses = map[models.OrderStatus]bool{
	models.OrderStatusPendingDeliveryInfo: true,
	models.OrderStatusPendingPayment:      true,
	models.OrderStatusPendingProcessing:   true,
	models.OrderStatusPaymentFailed:       true,
}

type orderReader interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// ValidationService checks whether an order is complete enough to pay for.
type ValidationService struct {
	orders   orderReader
	validate *validator.Validate
	logger   *slog.Logger
}

func NewValidationService(orders orderReader, logger *slog.Logger) *ValidationService {
	return &ValidationService{
		orders:   orders,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// ValidateForPayment loads the order and verifies every precondition for
// initiating payment. On success it returns the order with totals recomputed
// from its current line items, which is the amount the gateway will be asked
// to charge.
func (s *ValidationService) ValidateForPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Resource: "order", ID: orderID}
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}

	if !awaitablePaymentStatuses[order.Status] {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("%s does not permit payment", order.Status)}
	}
	if len(order.Items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "order has no line items"}
	}
	for _, item := range order.Items {
		if item.Quantity <= 0 {
			return nil, &ValidationError{Field: "items", Reason: fmt.Sprintf("quantity must be positive for %s", item.ProductID)}
		}
		if item.UnitPrice <= 0 {
			return nil, &ValidationError{Field: "items", Reason: fmt.Sprintf("unit price must be positive for %s", item.ProductID)}
		}
	}
	if order.Delivery == nil {
		return nil, &ValidationError{Field: "delivery_info", Reason: "is missing"}
	}
	if err := s.validate.Struct(order.Delivery); err != nil {
		return nil, &ValidationError{Field: "delivery_info", Reason: err.Error()}
	}

	order.RecomputeTotals()
	if order.Total <= 0 {
		return nil, &ValidationError{Field: "total", Reason: "must be positive"}
	}
	return order, nil
}

// IsReadyForPayment is a non-throwing convenience around ValidateForPayment.
// Business failures collapse to false; infrastructure errors still surface.
func (s *ValidationService) IsReadyForPayment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	_, err := s.ValidateForPayment(ctx, orderID)
	if err != nil {
		var verr *ValidationError
		var nferr *NotFoundError
		if errors.As(err, &verr) || errors.As(err, &nferr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
