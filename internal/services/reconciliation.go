package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aimstoreapp/aimstore/internal/cache"
	"github.com/aimstoreapp/aimstore/internal/db"
	"github.com/aimstoreapp/aimstore/internal/gateway"
	"github.com/aimstoreapp/aimstore/internal/logging"
	"github.com/aimstoreapp/aimstore/internal/models"
	"github.com/aimstoreapp/aimstore/internal/observability"
)

// Acknowledgement codes returned to the gateway. The gateway keys retry
// behavior off these, so they are part of the external contract.
const (
	AckCodeSuccess          = "00"
	AckCodeOrderNotFound    = "01"
	AckCodeAlreadyProcessed = "02"
	AckCodeInvalidAmount    = "04"
	AckCodeInvalidSignature = "97"
	AckCodeInternalError    = "99"
)

// Ack is the acknowledgement body sent back to the gateway for an IPN.
type Ack struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	ackSuccess          = Ack{Code: AckCodeSuccess, Message: "Confirm success"}
	ackOrderNotFound    = Ack{Code: AckCodeOrderNotFound, Message: "Order not found"}
	ackAlreadyProcessed = Ack{Code: AckCodeAlreadyProcessed, Message: "Order already confirmed"}
	ackInvalidAmount    = Ack{Code: AckCodeInvalidAmount, Message: "Invalid amount"}
	ackInvalidSignature = Ack{Code: AckCodeInvalidSignature, Message: "Invalid checksum"}
	ackInternalError    = Ack{Code: AckCodeInternalError, Message: "Unknown error"}
)

type transactionFinalizer interface {
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
	Finalize(ctx context.Context, id uuid.UUID, status models.TransactionStatus, externalID, content string) error
}

type notificationVerifier interface {
	VerifySignature(params map[string]string) bool
	MapResponseCode(code string) gateway.Outcome
	DescribeResponse(code, bankCode, payDate string) string
}

// ReconciliationService processes asynchronous payment notifications. The
// transaction record is the authority on payment state; order transitions
// follow from it and never block the acknowledgement.
type ReconciliationService struct {
	transactions transactionFinalizer
	orders       orderReader
	stateMachine stateMachine
	verifier     notificationVerifier
	cache        cache.Provider
	emails       OrderEmailSender
	logger       *slog.Logger
}

func NewReconciliationService(
	transactions transactionFinalizer,
	orders orderReader,
	sm stateMachine,
	verifier notificationVerifier,
	cacheProvider cache.Provider,
	emails OrderEmailSender,
	logger *slog.Logger,
) *ReconciliationService {
	if emails == nil {
		emails = NoopOrderEmailSender{}
	}
	return &ReconciliationService{
		transactions: transactions,
		orders:       orders,
		stateMachine: sm,
		verifier:     verifier,
		cache:        cacheProvider,
		emails:       emails,
		logger:       logger,
	}
}

var requiredNotificationParams = []string{
	gateway.ParamTxnRef,
	gateway.ParamResponseCode,
	gateway.ParamTransactionNo,
	gateway.ParamAmount,
	gateway.ParamSecureHash,
}

// HandleNotification runs the full reconciliation sequence for one gateway
// notification and returns the acknowledgement to send back. It never
// panics the caller into a retry loop: every outcome maps to an Ack.
func (s *ReconciliationService) HandleNotification(ctx context.Context, params map[string]string) Ack {
	span := sentry.StartSpan(
		ctx,
		"service.reconciliation.handle_notification",
		sentry.WithOpName("service.reconciliation"),
		sentry.WithDescription("HandleNotification"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := logging.FromContext(ctx, s.logger)
	meter := observability.MeterFromContext(ctx)
	meter.Count("reconciliation.notification.received", 1)

	for _, key := range requiredNotificationParams {
		if params[key] == "" {
			logger.Warn("notification missing required parameter", "param", key)
			meter.Count("reconciliation.notification.rejected", 1, sentry.WithAttributes(
				attribute.String("reason", "missing_param"),
			))
			return ackInvalidSignature
		}
	}

	if !s.verifier.VerifySignature(params) {
		// Deliberately generic. A forger learns nothing beyond "rejected".
		logger.Warn("notification signature verification failed",
			"txn_ref", params[gateway.ParamTxnRef], "param_count", len(params))
		meter.Count("reconciliation.notification.rejected", 1, sentry.WithAttributes(
			attribute.String("reason", "bad_signature"),
		))
		return ackInvalidSignature
	}

	// Replay short-circuit on the signed payload. Only verified payloads
	// reach the cache, so an attacker cannot poison it.
	cacheKey := cache.NotificationKey(gateway.ProviderNapas, payloadDigest(params))
	if s.cache != nil {
		if _, err := s.cache.Get(ctx, cacheKey); err == nil {
			meter.Count("reconciliation.notification.replayed", 1)
			return ackAlreadyProcessed
		}
	}

	orderID, err := gateway.ParseTransactionRef(params[gateway.ParamTxnRef])
	if err != nil {
		logger.Warn("notification carries unparseable transaction reference",
			"txn_ref", params[gateway.ParamTxnRef])
		return ackOrderNotFound
	}

	code := params[gateway.ParamResponseCode]
	content := s.verifier.DescribeResponse(code, params[gateway.ParamBankCode], params[gateway.ParamPayDate])

	wireAmount, err := strconv.ParseInt(params[gateway.ParamAmount], 10, 64)
	if err != nil {
		logger.Warn("notification carries unparseable amount", "amount", params[gateway.ParamAmount])
		return ackInvalidAmount
	}

	ack := s.reconcile(ctx, reconcileInput{
		orderID:    orderID,
		wireAmount: wireAmount,
		outcome:    s.verifier.MapResponseCode(code),
		externalID: params[gateway.ParamTransactionNo],
		content:    content,
	})
	if ack.Code == AckCodeSuccess && s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, "processed", 24*time.Hour); err != nil {
			logger.Debug("failed to record notification replay marker", "error", err)
		}
	}
	return ack
}

type reconcileInput struct {
	orderID    uuid.UUID
	wireAmount int64 // gateway minor units, order total times 100; < 0 skips the amount check
	outcome    gateway.Outcome
	externalID string
	content    string
}

// reconcile is the provider-independent core shared by the NapasPay IPN and
// the Stripe webhook paths.
func (s *ReconciliationService) reconcile(ctx context.Context, in reconcileInput) Ack {
	logger := logging.FromContext(ctx, s.logger)
	meter := observability.MeterFromContext(ctx)

	txn, err := s.transactions.GetByOrderID(ctx, in.orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("notification references unknown order", "order_id", in.orderID)
			return ackOrderNotFound
		}
		logger.Error("failed to load transaction for notification", "order_id", in.orderID, "error", err)
		return ackInternalError
	}

	// Idempotency before amount validation. A replay of an already-settled
	// notification must not be reported as an amount problem.
	if txn.Status.IsTerminal() {
		meter.Count("reconciliation.notification.duplicate", 1)
		return ackAlreadyProcessed
	}

	if in.wireAmount >= 0 {
		if in.wireAmount%100 != 0 || in.wireAmount/100 != txn.Amount {
			logger.Warn("notification amount does not match transaction",
				"order_id", in.orderID, "transaction_id", txn.ID,
				"notified_amount", in.wireAmount, "expected_amount", txn.Amount*100)
			meter.Count("reconciliation.notification.rejected", 1, sentry.WithAttributes(
				attribute.String("reason", "amount_mismatch"),
			))
			return ackInvalidAmount
		}
	}

	var status models.TransactionStatus
	var event Event
	switch in.outcome {
	case gateway.OutcomeSuccess:
		status = models.TransactionStatusSuccess
		event = EventPaymentSucceeded
	case gateway.OutcomePending:
		// Not final yet. Leave the transaction PENDING and ask the gateway
		// to deliver again once the payment settles.
		logger.Info("notification reports pending outcome, awaiting final delivery",
			"order_id", in.orderID, "transaction_id", txn.ID)
		return ackInternalError
	default:
		status = models.TransactionStatusFailed
		event = EventPaymentFailed
	}

	if err := s.transactions.Finalize(ctx, txn.ID, status, in.externalID, in.content); err != nil {
		switch {
		case errors.Is(err, db.ErrTransactionFinal):
			// Lost the race to a concurrent delivery of the same outcome.
			meter.Count("reconciliation.notification.duplicate", 1)
			return ackAlreadyProcessed
		case errors.Is(err, pgx.ErrNoRows):
			return ackOrderNotFound
		default:
			logger.Error("failed to finalize transaction",
				"transaction_id", txn.ID, "status", string(status), "error", err)
			return ackInternalError
		}
	}
	txn.Status = status

	meter.Count("reconciliation.notification.settled", 1, sentry.WithAttributes(
		attribute.String("status", string(status)),
	))
	logger.Info("payment transaction settled",
		"order_id", in.orderID, "transaction_id", txn.ID,
		"status", string(status), "external_id", in.externalID)

	// The transaction settled; the order transition is best effort. A
	// failure here is an operator problem, not a reason to make the
	// gateway redeliver a processed notification.
	if err := s.stateMachine.Apply(ctx, in.orderID, event); err != nil {
		logger.Error("failed to transition order after settlement",
			"order_id", in.orderID, "event", string(event), "error", err)
		meter.Count("reconciliation.order_transition.failed", 1)
	}

	s.notifyOutcome(ctx, in.orderID, txn)
	return ackSuccess
}

// HandleProviderOutcome settles a transaction from an already-authenticated
// provider callback, such as a verified Stripe webhook event. The gateway
// reference must match the transaction to guard against cross-wired events.
func (s *ReconciliationService) HandleProviderOutcome(ctx context.Context, orderID uuid.UUID, gatewayRef string, outcome gateway.Outcome, externalID, content string) Ack {
	logger := logging.FromContext(ctx, s.logger)

	txn, err := s.transactions.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ackOrderNotFound
		}
		logger.Error("failed to load transaction for provider outcome", "order_id", orderID, "error", err)
		return ackInternalError
	}
	if gatewayRef != "" && txn.GatewayRef != gatewayRef {
		logger.Warn("provider outcome reference does not match transaction",
			"order_id", orderID, "transaction_id", txn.ID)
		return ackOrderNotFound
	}

	return s.reconcile(ctx, reconcileInput{
		orderID:    orderID,
		wireAmount: -1,
		outcome:    outcome,
		externalID: externalID,
		content:    content,
	})
}

func (s *ReconciliationService) notifyOutcome(ctx context.Context, orderID uuid.UUID, txn *models.PaymentTransaction) {
	logger := logging.FromContext(ctx, s.logger)
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		logger.Warn("skipping outcome email, order load failed", "order_id", orderID, "error", err)
		return
	}
	if order.Delivery == nil || order.Delivery.Email == "" {
		return
	}
	switch txn.Status {
	case models.TransactionStatusSuccess:
		err = s.emails.SendPaymentReceipt(ctx, order, txn)
	case models.TransactionStatusFailed:
		err = s.emails.SendPaymentFailed(ctx, order, txn)
	default:
		return
	}
	if err != nil {
		logger.Warn("failed to send payment outcome email",
			"order_id", orderID, "status", string(txn.Status), "error", err)
	}
}

// payloadDigest hashes the canonical sorted key=value form of a notification
// so identical redeliveries map to the same cache key.
func payloadDigest(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
		b.WriteByte('&')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
