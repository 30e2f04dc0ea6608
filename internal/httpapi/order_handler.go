package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jmbcrafts/storefront/internal/relay"
)

// Notifier forwards a confirmed order to the shop owner.
type Notifier interface {
	Send(ctx context.Context, order *relay.Order) error
}

// OrderHandler is the synchronous order-notification endpoint: the
// serverless function of the original, kept for direct callers next to
// the dispatcher path.
type OrderHandler struct {
	notifier Notifier
	timeout  time.Duration
}

func NewOrderHandler(notifier Notifier, timeout time.Duration) *OrderHandler {
	return &OrderHandler{notifier: notifier, timeout: timeout}
}

func (h *OrderHandler) Notify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var order relay.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.notifier.Send(ctx, &order); err != nil {
		if errors.Is(err, relay.ErrMissingFields) {
			respondError(w, http.StatusBadRequest, "Missing required order information")
			return
		}
		log.Error().Err(err).Str("transaction_id", order.TransactionID).Msg("order notification failed")
		respondError(w, http.StatusInternalServerError, "Failed to send notification")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Order notification sent"})
}
