package handlers

import (
	"net/http"
	"time"

	"github.com/aimstoreapp/aimstore/internal/cache"
	"github.com/aimstoreapp/aimstore/internal/gateway"
	"github.com/aimstoreapp/aimstore/internal/services"
	stripewebhook "github.com/aimstoreapp/aimstore/internal/stripe"
)

// stripeWebhookIdempotencyTTL is how long webhook event IDs are kept for deduplication
const stripeWebhookIdempotencyTTL = 24 * time.Hour

// StripeWebhook settles international-card payments. Stripe authenticates
// events with its own signature scheme, so this path skips the NapasPay
// checksum and amount re-check: the session amount was fixed server side at
// creation.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	event, err := stripewebhook.ReadWebhookEvent(r, h.config.StripeWebhookSecret)
	if err != nil {
		logger.Error("failed to read Stripe webhook payload", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}
	if event.ID == "" {
		logger.Error("missing Stripe event ID")
		http.Error(w, "Missing event ID", http.StatusBadRequest)
		return
	}

	outcome := gateway.Outcome("")
	switch string(event.Type) {
	case "checkout.session.completed":
		outcome = gateway.OutcomeSuccess
	case "checkout.session.expired":
		outcome = gateway.OutcomeCancelled
	case "checkout.session.async_payment_failed":
		outcome = gateway.OutcomeFailed
	default:
		// Not subscribed to anything else; acknowledge and move on.
		w.WriteHeader(http.StatusOK)
		return
	}

	cacheKey := cache.NotificationKey(gateway.ProviderStripe, event.ID)
	if _, err := h.cacheProvider.Get(ctx, cacheKey); err == nil {
		logger.Info("webhook already processed", "event_id", event.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	checkout, err := stripewebhook.ParseCheckoutOutcome(event)
	if err != nil {
		logger.Error("failed to parse checkout session event", "event_id", event.ID, "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	ack := h.reconciliation.HandleProviderOutcome(ctx, checkout.OrderID, checkout.TxnRef, outcome, checkout.SessionID, "stripe "+string(event.Type))
	switch ack.Code {
	case services.AckCodeSuccess, services.AckCodeAlreadyProcessed:
		if err := h.cacheProvider.Set(ctx, cacheKey, "processed", stripeWebhookIdempotencyTTL); err != nil {
			logger.Error("failed to mark webhook as processed in cache", "error", err)
		}
		w.WriteHeader(http.StatusOK)
	case services.AckCodeInternalError:
		// 5xx makes Stripe redeliver.
		http.Error(w, "Processing failed", http.StatusInternalServerError)
	default:
		logger.Warn("stripe event did not reconcile", "event_id", event.ID, "ack_code", ack.Code)
		w.WriteHeader(http.StatusOK)
	}
}
