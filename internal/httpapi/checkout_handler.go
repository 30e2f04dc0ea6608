package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/jmbcrafts/storefront/internal/checkout"
	"github.com/jmbcrafts/storefront/internal/payment"
	"github.com/jmbcrafts/storefront/internal/pricing"
)

type CheckoutHandler struct {
	orchestrator *checkout.Orchestrator
	gateway      *payment.ClientReportedGateway
}

func NewCheckoutHandler(orchestrator *checkout.Orchestrator, gateway *payment.ClientReportedGateway) *CheckoutHandler {
	return &CheckoutHandler{orchestrator: orchestrator, gateway: gateway}
}

type beginCheckoutResponseDTO struct {
	CheckoutID     string `json:"checkout_id"`
	PaymentOrderID string `json:"payment_order_id"`
	Amount         string `json:"amount"`
}

type confirmCheckoutRequestDTO struct {
	TransactionID    string `json:"transactionId"`
	PayerEmail       string `json:"payerEmail"`
	PayerName        string `json:"payerName"`
	MailingListOptIn bool   `json:"mailingListOptIn"`
}

type confirmCheckoutResponseDTO struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	CustomerEmail string `json:"customerEmail"`
	Total         string `json:"total"`
}

// Begin renders a new checkout attempt for the session's cart.
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	session, err := h.orchestrator.Begin(r.Context(), getCartID(r.Context()))
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			respondError(w, http.StatusBadRequest, "cart is empty")
			return
		}
		log.Error().Err(err).Msg("failed to begin checkout")
		respondError(w, http.StatusBadGateway, "Failed to start checkout")
		return
	}

	respondJSON(w, http.StatusCreated, beginCheckoutResponseDTO{
		CheckoutID:     session.ID,
		PaymentOrderID: session.PaymentOrderID,
		Amount:         pricing.FormatAmount(session.Amount),
	})
}

// Confirm settles the attempt with the capture the payment widget
// reported to the client.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	checkoutID := chi.URLParam(r, "checkout_id")

	var req confirmCheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TransactionID == "" || req.PayerEmail == "" {
		respondError(w, http.StatusBadRequest, "transactionId and payerEmail are required")
		return
	}

	session, err := h.orchestrator.Session(checkoutID)
	if err != nil {
		respondError(w, http.StatusNotFound, "checkout not found")
		return
	}

	h.gateway.Report(session.PaymentOrderID, checkout.Capture{
		TransactionID: req.TransactionID,
		PayerEmail:    req.PayerEmail,
		PayerName:     req.PayerName,
	})

	order, err := h.orchestrator.Confirm(r.Context(), checkoutID, req.MailingListOptIn)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrAmountMismatch):
			respondError(w, http.StatusConflict, "cart changed since checkout started, please retry")
		case errors.Is(err, checkout.ErrIllegalTransition):
			respondError(w, http.StatusConflict, "checkout already settled")
		case errors.Is(err, checkout.ErrPaymentFailed):
			respondError(w, http.StatusBadGateway, "Payment failed. Please try again.")
		default:
			log.Error().Err(err).Str("checkout_id", checkoutID).Msg("failed to confirm checkout")
			respondError(w, http.StatusInternalServerError, "Failed to confirm checkout")
		}
		return
	}

	respondJSON(w, http.StatusOK, confirmCheckoutResponseDTO{
		Success:       true,
		TransactionID: order.TransactionID,
		CustomerEmail: order.CustomerEmail,
		Total:         pricing.FormatAmount(order.Total),
	})
}
