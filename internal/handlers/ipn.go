package handlers

import (
	"net/http"
)

// GatewayIPN receives server-to-server payment notifications from NapasPay.
// The gateway delivers parameters in the query string and retries until it
// receives a well-formed acknowledgement, so this endpoint always answers
// 200 with an ack body.
func (h *Handlers) GatewayIPN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.loggerFromContext(ctx).Warn("failed to parse notification parameters", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	params := make(map[string]string, len(r.Form))
	for key := range r.Form {
		params[key] = r.Form.Get(key)
	}

	ack := h.reconciliation.HandleNotification(ctx, params)
	h.writeJSON(w, r, http.StatusOK, ack)
}
