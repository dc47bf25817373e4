package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimstoreapp/aimstore/internal/cache"
	"github.com/aimstoreapp/aimstore/internal/config"
	"github.com/aimstoreapp/aimstore/internal/db"
	"github.com/aimstoreapp/aimstore/internal/gateway"
	"github.com/aimstoreapp/aimstore/internal/logging"
	"github.com/aimstoreapp/aimstore/internal/services"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MB

// orderStore is the slice of db.OrderStore the HTTP layer touches.
type orderStore interface {
	Create(ctx context.Context, order *db.Order) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*db.Order, error)
	SetDeliveryInfo(ctx context.Context, orderID uuid.UUID, delivery *db.DeliveryInfo, deliveryFee int64, subtotal, subtotalInclVAT, total int64) error
}

// Handlers provides the HTTP surface of the store: customer order endpoints,
// gateway callbacks, and manager actions.
type Handlers struct {
	config         *config.Config
	db             *pgxpool.Pool
	orderStore     orderStore
	cacheProvider  cache.Provider
	validation     *services.ValidationService
	payments       *services.PaymentService
	reconciliation *services.ReconciliationService
	stateMachine   *services.OrderStateMachine
	napas          *gateway.Napas
	logger         *slog.Logger
}

type Dependencies struct {
	Config         *config.Config
	DB             *pgxpool.Pool
	OrderStore     *db.OrderStore
	CacheProvider  cache.Provider
	Validation     *services.ValidationService
	Payments       *services.PaymentService
	Reconciliation *services.ReconciliationService
	StateMachine   *services.OrderStateMachine
	Napas          *gateway.Napas
	Logger         *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.OrderStore == nil {
		return nil, fmt.Errorf("handlers dependencies: orderStore is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}
	if deps.Validation == nil {
		return nil, fmt.Errorf("handlers dependencies: validation is required")
	}
	if deps.Payments == nil {
		return nil, fmt.Errorf("handlers dependencies: payments is required")
	}
	if deps.Reconciliation == nil {
		return nil, fmt.Errorf("handlers dependencies: reconciliation is required")
	}
	if deps.StateMachine == nil {
		return nil, fmt.Errorf("handlers dependencies: stateMachine is required")
	}

	return &Handlers{
		config:         deps.Config,
		db:             deps.DB,
		orderStore:     deps.OrderStore,
		cacheProvider:  deps.CacheProvider,
		validation:     deps.Validation,
		payments:       deps.Payments,
		reconciliation: deps.Reconciliation,
		stateMachine:   deps.StateMachine,
		napas:          deps.Napas,
		logger:         logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeServiceError maps service-layer errors onto HTTP statuses without
// leaking internals.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errorsAs[*services.NotFoundError](err):
		h.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errorsAs[*services.ValidationError](err):
		h.writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errorsAs[*services.PaymentError](err):
		h.writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: "payment gateway unavailable, the attempt was recorded"})
	default:
		h.loggerFromContext(r.Context()).Error("request failed", "error", err)
		h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func errorsAs[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
