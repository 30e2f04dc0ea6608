package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterDeps struct {
	Catalog   *CatalogHandler
	Cart      *CartHandler
	Checkout  *CheckoutHandler
	Order     *OrderHandler
	Inventory *InventoryHandler
	Subscribe *SubscribeHandler
}

// NewRouter wires every API route behind the shared middleware chain.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", deps.Catalog.ListProducts)
		r.Get("/products/{product_id}", deps.Catalog.GetProduct)
		r.Get("/categories", deps.Catalog.ListCategories)
		r.Post("/catalog/refresh", deps.Catalog.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(CartSessionMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", deps.Cart.GetCart)
				r.Delete("/", deps.Cart.Clear)
				r.Post("/items", deps.Cart.AddItem)
				r.Put("/items/{product_id}", deps.Cart.SetQuantity)
				r.Patch("/items/{product_id}", deps.Cart.ChangeQuantity)
				r.Delete("/items/{product_id}", deps.Cart.RemoveItem)
			})

			r.Post("/checkout", deps.Checkout.Begin)
			r.Post("/checkout/{checkout_id}/confirm", deps.Checkout.Confirm)
		})

		r.Post("/order-notification", deps.Order.Notify)
		r.Post("/update-inventory", deps.Inventory.Update)
		r.Post("/subscribe", deps.Subscribe.Subscribe)
	})

	return r
}
