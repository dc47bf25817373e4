package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/aimstoreapp/aimstore/internal/config"
	"github.com/aimstoreapp/aimstore/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	// Gateway callbacks. The IPN carries its own signature; the return URL
	// is advisory only. Some gateways deliver the IPN as GET, some as POST.
	r.HandleFunc("/payment/ipn", h.GatewayIPN).Methods("GET", "POST").Name("payment.ipn")
	r.HandleFunc("/payment/return", h.PaymentReturn).Methods("GET").Name("payment.return")
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods("POST").Name("webhooks.stripe")

	// Customer order surface.
	orderRouter := r.PathPrefix("/orders").Subrouter()
	orderRouter.HandleFunc("", h.CreateOrder).Methods("POST").Name("orders.create")
	orderRouter.HandleFunc("/{id}", h.GetOrder).Methods("GET").Name("orders.get")
	orderRouter.HandleFunc("/{id}/delivery", h.SetDeliveryInfo).Methods("PUT").Name("orders.delivery")
	orderRouter.HandleFunc("/{id}/payment", h.InitiatePayment).Methods("POST").Name("orders.payment")

	r.HandleFunc("/payment/transactions/{id}", h.GetTransaction).Methods("GET").Name("payment.transactions.get")

	// Back-office actions.
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(h.RequireManager)
	adminRouter.Use(h.RequireSameOrigin)
	adminRouter.HandleFunc("/orders/{id}/reject", h.RejectOrder).Methods("POST").Name("admin.orders.reject")
	adminRouter.HandleFunc("/orders/{id}/cancel", h.CancelOrder).Methods("POST").Name("admin.orders.cancel")
	adminRouter.HandleFunc("/orders/{id}/ship", h.ShipOrder).Methods("POST").Name("admin.orders.ship")
	adminRouter.HandleFunc("/orders/{id}/deliver", h.DeliverOrder).Methods("POST").Name("admin.orders.deliver")
	adminRouter.HandleFunc("/orders/{id}/stock-failed", h.MarkStockFailed).Methods("POST").Name("admin.orders.stock_failed")
	adminRouter.HandleFunc("/orders/{id}/stock-recovered", h.MarkStockRecovered).Methods("POST").Name("admin.orders.stock_recovered")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}
