package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Subscriber adds an email to the shop's mailing list.
type Subscriber interface {
	Subscribe(ctx context.Context, email string) error
}

type SubscribeHandler struct {
	subscriber Subscriber
	timeout    time.Duration
}

func NewSubscribeHandler(subscriber Subscriber, timeout time.Duration) *SubscribeHandler {
	return &SubscribeHandler{subscriber: subscriber, timeout: timeout}
}

type subscribeRequestDTO struct {
	Email string `json:"email"`
}

func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req subscribeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}

	if err := h.subscriber.Subscribe(ctx, req.Email); err != nil {
		log.Error().Err(err).Msg("subscribe failed")
		respondError(w, http.StatusInternalServerError, "Failed to subscribe")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
