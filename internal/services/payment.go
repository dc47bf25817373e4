package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aimstoreapp/aimstore/internal/gateway"
	"github.com/aimstoreapp/aimstore/internal/logging"
	"github.com/aimstoreapp/aimstore/internal/models"
	"github.com/aimstoreapp/aimstore/internal/observability"
)

type orderValidator interface {
	ValidateForPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type transactionStore interface {
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	SetGatewayRef(ctx context.Context, id uuid.UUID, ref string) error
	HasActive(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type paymentMethodStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error)
}

type stateMachine interface {
	Apply(ctx context.Context, orderID uuid.UUID, event Event) error
}

// PaymentService initiates payments. Each initiation creates a PENDING
// transaction before the gateway is contacted, so a crash mid-call leaves a
// row for reconciliation or the pending sweep to resolve.
type PaymentService struct {
	validator      orderValidator
	transactions   transactionStore
	methods        paymentMethodStore
	providers      map[models.PaymentMethodType]gateway.Provider
	stateMachine   stateMachine
	gatewayTimeout time.Duration
	logger         *slog.Logger
}

func NewPaymentService(
	validator orderValidator,
	transactions transactionStore,
	methods paymentMethodStore,
	providers map[models.PaymentMethodType]gateway.Provider,
	sm stateMachine,
	gatewayTimeout time.Duration,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		validator:      validator,
		transactions:   transactions,
		methods:        methods,
		providers:      providers,
		stateMachine:   sm,
		gatewayTimeout: gatewayTimeout,
		logger:         logger,
	}
}

// InitiatePayment validates the order, records a PENDING transaction for its
// current total, and asks the provider for a redirect URL. The transaction
// amount is fixed at creation; reconciliation later checks the gateway's
// notified amount against it.
func (s *PaymentService) InitiatePayment(ctx context.Context, orderID, methodID uuid.UUID, client gateway.ClientContext) (*models.PaymentTransaction, string, error) {
	span := sentry.StartSpan(
		ctx,
		"service.payment.initiate",
		sentry.WithOpName("service.payment"),
		sentry.WithDescription("InitiatePayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := logging.FromContext(ctx, s.logger)
	meter := observability.MeterFromContext(ctx)
	meter.Count("payment.initiate.requested", 1)

	order, err := s.validator.ValidateForPayment(ctx, orderID)
	if err != nil {
		meter.Count("payment.initiate.rejected", 1, sentry.WithAttributes(
			attribute.String("reason", "validation"),
		))
		return nil, "", err
	}

	method, err := s.methods.GetByID(ctx, methodID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", &NotFoundError{Resource: "payment method", ID: methodID}
		}
		return nil, "", fmt.Errorf("loading payment method: %w", err)
	}
	provider, ok := s.providers[method.Type]
	if !ok {
		return nil, "", &ValidationError{Field: "payment_method", Reason: fmt.Sprintf("type %s is not supported", method.Type)}
	}

	active, err := s.transactions.HasActive(ctx, order.ID)
	if err != nil {
		return nil, "", fmt.Errorf("checking active transactions: %w", err)
	}
	if active {
		meter.Count("payment.initiate.rejected", 1, sentry.WithAttributes(
			attribute.String("reason", "already_in_progress"),
		))
		return nil, "", &ValidationError{Field: "order", Reason: "a payment is already in progress"}
	}

	txn := &models.PaymentTransaction{
		OrderID:  order.ID,
		MethodID: method.ID,
		Type:     models.TransactionTypePayment,
		Provider: provider.Name(),
		Amount:   order.Total,
		Status:   models.TransactionStatusPending,
	}
	if err := s.transactions.Create(ctx, txn); err != nil {
		return nil, "", fmt.Errorf("creating transaction: %w", err)
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	redirectURL, txnRef, err := provider.BuildPaymentRequest(gctx, order, method, client)
	if err != nil {
		meter.Count("payment.initiate.gateway_failed", 1, sentry.WithAttributes(
			attribute.String("provider", provider.Name()),
		))
		logger.Error("gateway payment request failed",
			"order_id", order.ID, "transaction_id", txn.ID, "provider", provider.Name(), "error", err)
		// Transaction stays PENDING. The sweep expires it if the gateway
		// never calls back.
		return nil, "", &PaymentError{Provider: provider.Name(), Err: err}
	}

	if err := s.transactions.SetGatewayRef(ctx, txn.ID, txnRef); err != nil {
		return nil, "", fmt.Errorf("recording gateway reference: %w", err)
	}
	txn.GatewayRef = txnRef

	if err := s.stateMachine.Apply(ctx, order.ID, EventPaymentRedirectIssued); err != nil {
		return nil, "", fmt.Errorf("marking order pending processing: %w", err)
	}

	meter.Count("payment.initiate.redirected", 1, sentry.WithAttributes(
		attribute.String("provider", provider.Name()),
	))
	logger.Info("payment redirect issued",
		"order_id", order.ID, "transaction_id", txn.ID, "provider", provider.Name(), "amount", txn.Amount)
	return txn, redirectURL, nil
}

// CheckStatus returns the current transaction record without contacting the
// gateway. Asynchronous notifications are the source of truth for outcomes.
func (s *PaymentService) CheckStatus(ctx context.Context, txnID uuid.UUID) (*models.PaymentTransaction, error) {
	txn, err := s.transactions.GetByID(ctx, txnID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Resource: "transaction", ID: txnID}
		}
		return nil, fmt.Errorf("loading transaction: %w", err)
	}
	return txn, nil
}
