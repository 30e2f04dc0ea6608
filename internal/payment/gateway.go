// Package payment is the boundary to the external payment widget. The
// widget's own protocol is out of scope: it runs hosted in the buyer's
// browser, creates and captures the order there, and the client
// reports the capture result back to us.
package payment

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmbcrafts/storefront/internal/checkout"
)

var ErrNoCaptureReported = errors.New("no capture reported for payment order")

// ClientReportedGateway implements checkout.PaymentGateway for the
// hosted-widget flow. CreateOrder issues a local payment-order id that
// the widget render is keyed on; the confirm endpoint reports the
// widget's capture result under that id before the orchestrator asks
// for it.
type ClientReportedGateway struct {
	mu       sync.Mutex
	captures map[string]*checkout.Capture
}

func NewClientReportedGateway() *ClientReportedGateway {
	return &ClientReportedGateway{captures: make(map[string]*checkout.Capture)}
}

func (g *ClientReportedGateway) CreateOrder(_ context.Context, _ decimal.Decimal) (string, error) {
	return uuid.New().String(), nil
}

// Report records the capture the widget produced for a payment order.
func (g *ClientReportedGateway) Report(paymentOrderID string, capture checkout.Capture) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captures[paymentOrderID] = &capture
}

// CancelOrder discards the payment order together with any capture
// reported for it. Abandoned orders would otherwise pin their captures
// in memory for the life of the process.
func (g *ClientReportedGateway) CancelOrder(_ context.Context, paymentOrderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.captures, paymentOrderID)
	return nil
}

// CaptureOrder hands back the reported capture, consuming it.
func (g *ClientReportedGateway) CaptureOrder(_ context.Context, paymentOrderID string) (*checkout.Capture, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	capture, ok := g.captures[paymentOrderID]
	if !ok {
		return nil, ErrNoCaptureReported
	}
	delete(g.captures, paymentOrderID)
	return capture, nil
}
