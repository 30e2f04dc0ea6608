package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbcrafts/storefront/internal/cart"
	"github.com/jmbcrafts/storefront/internal/catalog"
	"github.com/jmbcrafts/storefront/internal/checkout"
	"github.com/jmbcrafts/storefront/internal/payment"
	"github.com/jmbcrafts/storefront/internal/pricing"
)

type staticLoader struct {
	products []catalog.Product
}

func (l staticLoader) Load(_ context.Context) ([]catalog.Product, error) {
	return l.products, nil
}

// recordingDispatcher mirrors the sqlite repository's idempotency-key
// uniqueness for router-level tests.
type recordingDispatcher struct {
	kinds map[string]string
}

func (d *recordingDispatcher) Enqueue(_ context.Context, idempotencyKey, kind string, _ json.RawMessage, _ int) (bool, error) {
	if _, exists := d.kinds[idempotencyKey]; exists {
		return false, nil
	}
	d.kinds[idempotencyKey] = kind
	return true, nil
}

type testEnv struct {
	router     http.Handler
	dispatcher *recordingDispatcher
	cookie     *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cat, err := catalog.New(context.Background(), staticLoader{products: []catalog.Product{
		{ID: 1, Name: "Birthday Card", Category: "birthday", Price: decimal.RequireFromString("8.99"), Image: "/img/birthday.jpg", Featured: true},
		{ID: 2, Name: "Thank You Card", Category: "thank-you", Price: decimal.RequireFromString("6.99"), Image: "/img/thanks.jpg"},
		{ID: 3, Name: "Wedding Card", Category: "wedding", Subcategory: "congratulations", Price: decimal.RequireFromString("12.50"), Image: "/img/wedding.jpg"},
	}})
	require.NoError(t, err)

	carts := cart.NewService(cart.NewRedisStore(client), cat, nil)
	rules := pricing.DefaultRules()
	gateway := payment.NewClientReportedGateway()
	dispatcher := &recordingDispatcher{kinds: make(map[string]string)}
	orchestrator := checkout.NewOrchestrator(carts, gateway, dispatcher, rules, 5)

	router := NewRouter(RouterDeps{
		Catalog:   NewCatalogHandler(cat),
		Cart:      NewCartHandler(carts, rules),
		Checkout:  NewCheckoutHandler(orchestrator, gateway),
		Order:     NewOrderHandler(&stubNotifier{}, time.Second),
		Inventory: NewInventoryHandler(&stubReconciler{}, time.Second),
		Subscribe: NewSubscribeHandler(&stubSubscriber{}, time.Second),
	})

	return &testEnv{router: router, dispatcher: dispatcher}
}

// do performs a request, carrying the cart session cookie across calls
// like a browser would.
func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == "cart_session" {
			e.cookie = c
		}
	}
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartResponseDTO {
	t.Helper()
	var resp cartResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRouter_ListProducts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Products []catalog.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Products, 3)

	rec = env.do(t, http.MethodGet, "/api/products?featured=true", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Birthday Card", resp.Products[0].Name)

	rec = env.do(t, http.MethodGet, "/api/products?category=wedding", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Products, 1)
	assert.Equal(t, 3, resp.Products[0].ID)
}

func TestRouter_GetProduct(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/products/2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var product catalog.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &product))
	assert.Equal(t, "Thank You Card", product.Name)

	rec = env.do(t, http.MethodGet, "/api/products/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ListCategories(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Categories []struct {
			Slug string `json:"slug"`
			Name string `json:"name"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Categories, 3)
	assert.Equal(t, "thank-you", resp.Categories[1].Slug)
	assert.Equal(t, "Thank You", resp.Categories[1].Name)
}

func TestRouter_CartLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := decodeCart(t, env.do(t, http.MethodGet, "/api/cart", ""))
	assert.Equal(t, 0, resp.ItemCount)
	assert.Equal(t, "0.00", resp.Subtotal)
	assert.NotNil(t, resp.Items)

	rec := env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 1, "quantity": 2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp = decodeCart(t, rec)
	assert.Equal(t, 2, resp.ItemCount)
	assert.Equal(t, "17.98", resp.Subtotal)
	assert.Equal(t, "4.99", resp.Shipping)
	assert.Equal(t, "22.97", resp.Total)
	assert.False(t, resp.FreeShipping)

	// same product merges into the existing line
	rec = env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp = decodeCart(t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 3, resp.Items[0].Quantity)

	rec = env.do(t, http.MethodPut, "/api/cart/items/1", `{"quantity": 4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeCart(t, rec)
	assert.Equal(t, "35.96", resp.Subtotal)
	assert.Equal(t, "0.00", resp.Shipping)
	assert.True(t, resp.FreeShipping)

	rec = env.do(t, http.MethodPatch, "/api/cart/items/1", `{"delta": -1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeCart(t, rec)
	assert.Equal(t, 3, resp.ItemCount)

	rec = env.do(t, http.MethodDelete, "/api/cart/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeCart(t, rec)
	assert.Empty(t, resp.Items)
}

func TestRouter_AddItemUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 42}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_AddItemValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 1, "quantity": 100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CartSessionIsolation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// a fresh browser gets its own empty cart
	other := &testEnv{router: env.router, dispatcher: env.dispatcher}
	resp := decodeCart(t, other.do(t, http.MethodGet, "/api/cart", ""))
	assert.Equal(t, 0, resp.ItemCount)

	resp = decodeCart(t, env.do(t, http.MethodGet, "/api/cart", ""))
	assert.Equal(t, 1, resp.ItemCount)
}

func TestRouter_CheckoutFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 1, "quantity": 2}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/checkout", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var begin beginCheckoutResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &begin))
	assert.NotEmpty(t, begin.CheckoutID)
	assert.Equal(t, "22.97", begin.Amount)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/checkout/%s/confirm", begin.CheckoutID),
		`{"transactionId": "TX-77", "payerEmail": "buyer@example.com", "payerName": "Jo Buyer", "mailingListOptIn": true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var confirm confirmCheckoutResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirm))
	assert.True(t, confirm.Success)
	assert.Equal(t, "TX-77", confirm.TransactionID)
	assert.Equal(t, "buyer@example.com", confirm.CustomerEmail)
	assert.Equal(t, "22.97", confirm.Total)

	// settlement tasks were enqueued under the transaction id
	assert.Equal(t, checkout.TaskKindOrderNotification, env.dispatcher.kinds["TX-77:notify"])
	assert.Equal(t, checkout.TaskKindInventoryUpdate, env.dispatcher.kinds["TX-77:inventory"])

	// the cart is cleared after capture
	resp := decodeCart(t, env.do(t, http.MethodGet, "/api/cart", ""))
	assert.Equal(t, 0, resp.ItemCount)
}

func TestRouter_CheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/checkout", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CheckoutCartChangedMidApproval(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/checkout", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var begin beginCheckoutResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &begin))

	// cart mutates while the widget is open
	rec = env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 2}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/checkout/%s/confirm", begin.CheckoutID),
		`{"transactionId": "TX-88", "payerEmail": "buyer@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, env.dispatcher.kinds)
}

func TestRouter_ConfirmUnknownCheckout(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/checkout/nope/confirm",
		`{"transactionId": "TX-1", "payerEmail": "a@b.c"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ConfirmMissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/checkout/whatever/confirm", `{"payerEmail": "a@b.c"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
