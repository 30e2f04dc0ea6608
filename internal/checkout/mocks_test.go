package checkout

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jmbcrafts/storefront/internal/cart"
	"github.com/jmbcrafts/storefront/internal/catalog"
)

type staticLoader struct {
	products []catalog.Product
}

func (l staticLoader) Load(_ context.Context) ([]catalog.Product, error) {
	return l.products, nil
}

// fakeGateway approves or refuses captures on command.
type fakeGateway struct {
	createErr     error
	captureErr    error
	createdWith   []decimal.Decimal
	capturedWith  []string
	cancelledWith []string
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount decimal.Decimal) (string, error) {
	if g.createErr != nil {
		return "", g.createErr
	}
	g.createdWith = append(g.createdWith, amount)
	return "PAYORDER-1", nil
}

func (g *fakeGateway) CaptureOrder(_ context.Context, paymentOrderID string) (*Capture, error) {
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	g.capturedWith = append(g.capturedWith, paymentOrderID)
	return &Capture{
		TransactionID: "TX-123",
		PayerEmail:    "buyer@example.com",
		PayerName:     "Jo Buyer",
	}, nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, paymentOrderID string) error {
	g.cancelledWith = append(g.cancelledWith, paymentOrderID)
	return nil
}

type enqueuedTask struct {
	kind    string
	payload json.RawMessage
}

// fakeDispatcher records tasks and enforces idempotency-key
// uniqueness just like the sqlite repository does.
type fakeDispatcher struct {
	enqueueErr error
	tasks      map[string]enqueuedTask
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{tasks: make(map[string]enqueuedTask)}
}

func (d *fakeDispatcher) Enqueue(_ context.Context, idempotencyKey, kind string, payload json.RawMessage, _ int) (bool, error) {
	if d.enqueueErr != nil {
		return false, d.enqueueErr
	}
	if _, exists := d.tasks[idempotencyKey]; exists {
		return false, nil
	}
	d.tasks[idempotencyKey] = enqueuedTask{kind: kind, payload: payload}
	return true, nil
}

func testCartService(t *testing.T) *cart.Service {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cat, err := catalog.New(context.Background(), staticLoader{products: []catalog.Product{
		{ID: 1, Name: "Birthday Wishes", Category: "birthday", Price: decimal.NewFromFloat(8.99), Image: "images/birthday-wishes.jpg"},
		{ID: 2, Name: "Winter Wonderland", Category: "holiday", Price: decimal.NewFromFloat(9.99), Image: "images/winter-wonderland.jpg"},
	}})
	require.NoError(t, err)

	return cart.NewService(cart.NewRedisStore(client), cat, nil)
}
