package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimstoreapp/aimstore/internal/cache"
	"github.com/aimstoreapp/aimstore/internal/config"
	"github.com/aimstoreapp/aimstore/internal/crypto"
	"github.com/aimstoreapp/aimstore/internal/db"
	"github.com/aimstoreapp/aimstore/internal/email"
	"github.com/aimstoreapp/aimstore/internal/gateway"
	"github.com/aimstoreapp/aimstore/internal/handlers"
	"github.com/aimstoreapp/aimstore/internal/models"
	"github.com/aimstoreapp/aimstore/internal/services"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers

	sweeper     *services.Sweeper
	sweepCancel context.CancelFunc
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	orderStore, err := db.NewOrderStore(database, encryptor)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize order store: %w", err)
	}
	transactionStore := db.NewTransactionStore(database)
	methodStore := db.NewPaymentMethodStore(database)

	napas, err := gateway.NewNapas(gateway.NapasConfig{
		MerchantCode: cfg.GatewayMerchantCode,
		HashSecret:   cfg.GatewayHashSecret,
		PayURL:       cfg.GatewayPayURL,
		ReturnURL:    cfg.BaseURL + "/payment/return",
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize payment gateway: %w", err)
	}

	providers := map[models.PaymentMethodType]gateway.Provider{
		models.MethodDomesticCard: napas,
	}
	if cfg.StripeSecretKey != "" {
		providers[models.MethodInternationalCard] = gateway.NewStripe(cfg.StripeSecretKey, cfg.BaseURL)
	}

	var orderEmails services.OrderEmailSender = services.NoopOrderEmailSender{}
	if cfg.EmailProvider != "" {
		emailProvider, err := email.NewProvider(email.Config{
			Provider: cfg.EmailProvider,
			APIKey:   cfg.EmailAPIKey,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("failed to initialize email provider: %w", err)
		}
		orderEmails = services.NewProviderOrderEmailSender(emailProvider)
	}

	stateMachine := services.NewOrderStateMachine(orderStore, logger.With("component", "state_machine"))
	validation := services.NewValidationService(orderStore, logger.With("component", "validation_service"))
	payments := services.NewPaymentService(
		validation,
		transactionStore,
		methodStore,
		providers,
		stateMachine,
		cfg.GatewayTimeout,
		logger.With("component", "payment_service"),
	)
	reconciliation := services.NewReconciliationService(
		transactionStore,
		orderStore,
		stateMachine,
		napas,
		cacheProvider,
		orderEmails,
		logger.With("component", "reconciliation_service"),
	)

	h, err := handlers.New(handlers.Dependencies{
		Config:         cfg,
		DB:             database,
		OrderStore:     orderStore,
		CacheProvider:  cacheProvider,
		Validation:     validation,
		Payments:       payments,
		Reconciliation: reconciliation,
		StateMachine:   stateMachine,
		Napas:          napas,
		Logger:         logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	a := &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
	}

	if cfg.SweepEnabled() {
		a.sweeper = services.NewSweeper(
			transactionStore,
			stateMachine,
			cfg.PendingSweepInterval,
			cfg.PendingMaxAge,
			logger.With("component", "sweeper"),
		)
		var sweepCtx context.Context
		sweepCtx, a.sweepCancel = context.WithCancel(context.Background())
		go a.sweeper.Run(sweepCtx)
	}

	return a, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.sweepCancel != nil {
		a.sweepCancel()
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	case "text", "":
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel}))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
