package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jmbcrafts/storefront/internal/inventory"
)

// Reconciler decrements remote inventory for purchased items.
type Reconciler interface {
	Reconcile(ctx context.Context, items []inventory.PurchasedItem) error
}

type InventoryHandler struct {
	reconciler Reconciler
	timeout    time.Duration
}

func NewInventoryHandler(reconciler Reconciler, timeout time.Duration) *InventoryHandler {
	return &InventoryHandler{reconciler: reconciler, timeout: timeout}
}

type updateInventoryRequestDTO struct {
	Items []inventory.PurchasedItem `json:"items"`
}

func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req updateInventoryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "Items array is required")
		return
	}

	if err := h.reconciler.Reconcile(ctx, req.Items); err != nil {
		// version conflicts included: after the retry budget they are
		// an upstream failure to this endpoint's caller
		log.Error().Err(err).Msg("inventory update failed")
		respondError(w, http.StatusInternalServerError, "Failed to update inventory")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
