package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/aimstoreapp/aimstore/internal/db"
	"github.com/aimstoreapp/aimstore/internal/gateway"
	"github.com/aimstoreapp/aimstore/internal/models"
	"github.com/aimstoreapp/aimstore/internal/services"
)

const maxOrderBodyBytes = 64 << 10

type createOrderRequest struct {
	CustomerID *uuid.UUID `json:"customer_id"`
	Items      []struct {
		ProductID uuid.UUID `json:"product_id"`
		Title     string    `json:"title"`
		UnitPrice int64     `json:"unit_price"`
		Quantity  int       `json:"quantity"`
	} `json:"items"`
}

// CreateOrder opens a new order from a cart snapshot. Prices are the
// caller's catalog snapshot; totals are always rederived server side.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		h.writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Error: "order needs at least one item"})
		return
	}

	order := &models.Order{Status: models.OrderStatusPendingDeliveryInfo}
	if req.CustomerID != nil {
		order.CustomerID = *req.CustomerID
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.UnitPrice <= 0 {
			h.writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Error: "item quantity and unit price must be positive"})
			return
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	if err := h.orderStore.Create(ctx, order); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.loggerFromContext(ctx).Info("order created", "order_id", order.ID, "items", len(order.Items), "total", order.Total)
	h.writeJSON(w, r, http.StatusCreated, order)
}

type setDeliveryRequest struct {
	Delivery models.DeliveryInfo `json:"delivery"`
	// BaseFee is the quoted shipping fee for the selected province. Fee
	// quoting lives with the storefront; this core only records and
	// surcharges it.
	BaseFee int64 `json:"base_fee"`
}

// SetDeliveryInfo attaches or replaces delivery details on an order that has
// not entered payment yet, then reprices it.
func (h *Handlers) SetDeliveryInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}
	var req setDeliveryRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.BaseFee < 0 {
		h.writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Error: "base fee must not be negative"})
		return
	}

	order, err := h.orderStore.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeServiceError(w, r, &services.NotFoundError{Resource: "order", ID: orderID})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	order.Delivery = &req.Delivery
	order.DeliveryFee = models.ComputeDeliveryFee(order.Items, order.Delivery, req.BaseFee)
	order.RecomputeTotals()

	err = h.orderStore.SetDeliveryInfo(ctx, orderID, order.Delivery, order.DeliveryFee, order.Subtotal, order.SubtotalInclVAT, order.Total)
	if err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			h.writeJSON(w, r, http.StatusConflict, errorResponse{Error: "delivery info can no longer be changed for this order"})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.stateMachine.Apply(ctx, orderID, services.EventDeliveryInfoSaved); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	order.Status = models.OrderStatusPendingPayment
	h.writeJSON(w, r, http.StatusOK, order)
}

// GetOrder returns the full order aggregate.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}
	order, err := h.orderStore.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeServiceError(w, r, &services.NotFoundError{Resource: "order", ID: orderID})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, order)
}

type initiatePaymentRequest struct {
	MethodID uuid.UUID `json:"method_id"`
}

type initiatePaymentResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	RedirectURL   string    `json:"redirect_url"`
}

// InitiatePayment starts a payment attempt and hands back the gateway
// redirect URL for the customer's browser.
func (h *Handlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}
	var req initiatePaymentRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.MethodID == uuid.Nil {
		h.writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Error: "method_id is required"})
		return
	}

	client := gateway.ClientContext{
		IPAddress: clientIP(r),
		Locale:    r.URL.Query().Get("locale"),
	}
	txn, redirectURL, err := h.payments.InitiatePayment(ctx, orderID, req.MethodID, client)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, initiatePaymentResponse{
		TransactionID: txn.ID,
		RedirectURL:   redirectURL,
	})
}

// GetTransaction reports the stored state of one payment transaction.
func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := mux.Vars(r)["id"]
	txnID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid transaction id"})
		return
	}
	txn, err := h.payments.CheckStatus(ctx, txnID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, txn)
}

func (h *Handlers) orderIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := mux.Vars(r)["id"]
	orderID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return uuid.Nil, false
	}
	return orderID, true
}

func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxOrderBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
