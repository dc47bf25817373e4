package handlers

import (
	"html/template"
	"net/http"

	"github.com/aimstoreapp/aimstore/internal/gateway"
	"github.com/aimstoreapp/aimstore/internal/models"
)

// resultPage is what the customer sees when the gateway redirects them back.
// It renders current state only; settlement happens on the IPN path.
var resultPage = template.Must(template.New("payment_result").Parse(`<!DOCTYPE html>
<html>
<head><title>Payment result</title></head>
<body>
<h1>{{.Heading}}</h1>
<p>{{.Detail}}</p>
{{if .OrderID}}<p>Order reference: <code>{{.OrderID}}</code></p>{{end}}
</body>
</html>
`))

type resultPageData struct {
	Heading string
	Detail  string
	OrderID string
}

// PaymentReturn handles the customer's browser redirect after a payment
// attempt. The redirect is advisory: an attacker can replay or forge it, so
// it never mutates anything. When the signature checks out we can display
// the gateway's claimed outcome; otherwise we only show stored state.
func (h *Handlers) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	params := make(map[string]string, len(r.Form))
	for key := range r.Form {
		params[key] = r.Form.Get(key)
	}

	data := resultPageData{
		Heading: "Payment is being processed",
		Detail:  "We have not received the final confirmation from your bank yet. You will get an email once the payment settles.",
	}

	orderID, err := gateway.ParseTransactionRef(params[gateway.ParamTxnRef])
	if err != nil {
		logger.Warn("return redirect with unparseable reference", "txn_ref", params[gateway.ParamTxnRef])
		h.renderResult(w, r, data)
		return
	}
	data.OrderID = orderID.String()

	order, err := h.orderStore.GetByID(ctx, orderID)
	if err != nil {
		logger.Warn("return redirect for unknown order", "order_id", orderID)
		data.OrderID = ""
		h.renderResult(w, r, data)
		return
	}

	switch order.Status {
	case models.OrderStatusApproved, models.OrderStatusShipping, models.OrderStatusDelivered:
		data.Heading = "Payment received"
		data.Detail = "Thank you. Your order is confirmed and will be prepared for shipping."
	case models.OrderStatusPaymentFailed:
		data.Heading = "Payment did not complete"
		data.Detail = "No money was captured for this attempt. You can retry from your order page."
	default:
		// Not settled yet. If the redirect itself is authentic we can at
		// least echo the gateway's claimed outcome as a preview.
		if h.returnLooksFailed(params) {
			data.Heading = "Payment was not completed"
			data.Detail = "The bank reported this attempt as unsuccessful. Final confirmation may take a moment to arrive."
		}
	}

	h.renderResult(w, r, data)
}

// returnLooksFailed reports whether an authenticated redirect carries a
// non-success response code.
func (h *Handlers) returnLooksFailed(params map[string]string) bool {
	if h.napas == nil || !h.napas.VerifySignature(params) {
		return false
	}
	return h.napas.MapResponseCode(params[gateway.ParamResponseCode]) != gateway.OutcomeSuccess
}

func (h *Handlers) renderResult(w http.ResponseWriter, r *http.Request, data resultPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := resultPage.Execute(w, data); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to render payment result page", "error", err)
	}
}
