package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/jmbcrafts/storefront/internal/catalog"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	snap := h.catalog.Current()

	var products []catalog.Product
	switch {
	case r.URL.Query().Get("featured") == "true":
		products = snap.Featured()
	case r.URL.Query().Get("subcategory") != "":
		products = snap.BySubcategory(r.URL.Query().Get("subcategory"))
	default:
		products = snap.ByCategory(r.URL.Query().Get("category"))
	}
	if products == nil {
		products = []catalog.Product{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "product_id"))
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "product_id must be a positive integer")
		return
	}

	product, err := h.catalog.Current().ProductByID(id)
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	snap := h.catalog.Current()

	type categoryDTO struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	}
	categories := make([]categoryDTO, 0)
	for _, slug := range snap.Categories() {
		categories = append(categories, categoryDTO{Slug: slug, Name: catalog.FormatCategoryName(slug)})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// Refresh reloads the catalog snapshot from its source.
func (h *CatalogHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Refresh(r.Context()); err != nil {
		log.Error().Err(err).Msg("catalog refresh failed")
		respondError(w, http.StatusInternalServerError, "Failed to refresh catalog")
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
