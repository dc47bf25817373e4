package handlers

import (
	"errors"
	"net/http"

	"github.com/aimstoreapp/aimstore/internal/db"
	"github.com/aimstoreapp/aimstore/internal/services"
)

// Back-office order actions. All of these are guarded by RequireManager and
// funnel through the state machine, so an action against an order in the
// wrong state returns 409 instead of corrupting the lifecycle.

type rejectOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) RejectOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}
	var req rejectOrderRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	h.applyOrderAction(w, r, func() error {
		return h.stateMachine.Reject(r.Context(), orderID, req.Reason)
	})
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.handleOrderEvent(w, r, services.EventCancelled)
}

func (h *Handlers) ShipOrder(w http.ResponseWriter, r *http.Request) {
	h.handleOrderEvent(w, r, services.EventShipped)
}

func (h *Handlers) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	h.handleOrderEvent(w, r, services.EventDelivered)
}

func (h *Handlers) MarkStockFailed(w http.ResponseWriter, r *http.Request) {
	h.handleOrderEvent(w, r, services.EventStockUpdateFailed)
}

func (h *Handlers) MarkStockRecovered(w http.ResponseWriter, r *http.Request) {
	h.handleOrderEvent(w, r, services.EventStockRecovered)
}

func (h *Handlers) handleOrderEvent(w http.ResponseWriter, r *http.Request, event services.Event) {
	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}
	h.applyOrderAction(w, r, func() error {
		return h.stateMachine.Apply(r.Context(), orderID, event)
	})
}

func (h *Handlers) applyOrderAction(w http.ResponseWriter, r *http.Request, action func() error) {
	if err := action(); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			h.writeJSON(w, r, http.StatusConflict, errorResponse{Error: "order state does not permit this action"})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
