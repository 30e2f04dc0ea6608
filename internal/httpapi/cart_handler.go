package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/jmbcrafts/storefront/internal/cart"
	"github.com/jmbcrafts/storefront/internal/pricing"
)

type CartHandler struct {
	carts *cart.Service
	rules pricing.Rules
}

func NewCartHandler(carts *cart.Service, rules pricing.Rules) *CartHandler {
	return &CartHandler{carts: carts, rules: rules}
}

type addItemRequestDTO struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

type setQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type changeQuantityRequestDTO struct {
	Delta int `json:"delta"`
}

// cartResponseDTO carries the lines plus the derived totals the cart
// page renders.
type cartResponseDTO struct {
	Items            []cart.Line `json:"items"`
	ItemCount        int         `json:"item_count"`
	Subtotal         string      `json:"subtotal"`
	Shipping         string      `json:"shipping"`
	Total            string      `json:"total"`
	AmountToFreeShip string      `json:"amount_to_free_shipping"`
	FreeShipping     bool        `json:"free_shipping"`
}

func (h *CartHandler) cartResponse(lines []cart.Line) cartResponseDTO {
	if lines == nil {
		lines = []cart.Line{}
	}
	subtotal := cart.Subtotal(lines)
	shipping := h.rules.ShippingCost(subtotal)
	return cartResponseDTO{
		Items:            lines,
		ItemCount:        cart.ItemCount(lines),
		Subtotal:         pricing.FormatAmount(subtotal),
		Shipping:         pricing.FormatAmount(shipping),
		Total:            pricing.FormatAmount(subtotal.Add(shipping)),
		AmountToFreeShip: pricing.FormatAmount(h.rules.AmountToFreeShipping(subtotal)),
		FreeShipping:     !subtotal.IsZero() && shipping.IsZero(),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	lines := h.carts.Get(r.Context(), getCartID(r.Context()))
	respondJSON(w, http.StatusOK, h.cartResponse(lines))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.ProductID <= 0 || req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "product_id must be positive and quantity between 1 and 99")
		return
	}

	cartID := getCartID(r.Context())
	added, err := h.carts.AddItem(r.Context(), cartID, req.ProductID, req.Quantity)
	if err != nil {
		log.Error().Err(err).Str("cart_id", cartID).Msg("failed to add cart item")
		respondError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	if !added {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}

	respondJSON(w, http.StatusCreated, h.cartResponse(h.carts.Get(r.Context(), cartID)))
}

func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req setQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	lines, err := h.carts.SetQuantity(r.Context(), getCartID(r.Context()), productID, req.Quantity)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(lines))
}

func (h *CartHandler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req changeQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	lines, err := h.carts.ChangeQuantity(r.Context(), getCartID(r.Context()), productID, req.Delta)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(lines))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	lines, err := h.carts.RemoveItem(r.Context(), getCartID(r.Context()), productID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(lines))
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), getCartID(r.Context())); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to clear cart")
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(nil))
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	productID, err := strconv.Atoi(chi.URLParam(r, "product_id"))
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
