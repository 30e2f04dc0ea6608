package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jmbcrafts/storefront/internal/cart"
	"github.com/jmbcrafts/storefront/internal/inventory"
	"github.com/jmbcrafts/storefront/internal/pricing"
	"github.com/jmbcrafts/storefront/internal/relay"
)

// Task kinds handed to the dispatcher at settlement.
const (
	TaskKindOrderNotification = "order-notification"
	TaskKindInventoryUpdate   = "inventory-update"
)

// PaymentGateway is the external payment widget. Its protocol is not
// ours: we hand it an amount, it comes back with a capture or an
// error.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal) (string, error)
	CaptureOrder(ctx context.Context, paymentOrderID string) (*Capture, error)
	// CancelOrder releases a payment order that will never be captured.
	CancelOrder(ctx context.Context, paymentOrderID string) error
}

// Dispatcher enqueues settlement side effects for reliable delivery.
// *dispatch.Repository satisfies it.
type Dispatcher interface {
	Enqueue(ctx context.Context, idempotencyKey, kind string, payload json.RawMessage, maxAttempts int) (bool, error)
}

// Session is one checkout attempt for one cart.
type Session struct {
	ID             string
	CartID         string
	Status         Status
	Amount         decimal.Decimal // total rendered to the payment widget
	PaymentOrderID string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// serializes Confirm: the status guard and the transitions after
	// it must not interleave across callers
	mu sync.Mutex
}

// InventoryPayload is the dispatch payload for an inventory update,
// matching the update endpoint's request body.
type InventoryPayload struct {
	Items []inventory.PurchasedItem `json:"items"`
}

// Orchestrator drives a checkout attempt end to end: render amount,
// capture, settle, clear. Sessions live in memory; each is
// single-attempt and never retried automatically.
type Orchestrator struct {
	carts       *cart.Service
	gateway     PaymentGateway
	dispatcher  Dispatcher
	rules       pricing.Rules
	maxAttempts int

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewOrchestrator(carts *cart.Service, gateway PaymentGateway, dispatcher Dispatcher, rules pricing.Rules, maxAttempts int) *Orchestrator {
	return &Orchestrator{
		carts:       carts,
		gateway:     gateway,
		dispatcher:  dispatcher,
		rules:       rules,
		maxAttempts: maxAttempts,
		sessions:    make(map[string]*Session),
	}
}

// Begin starts a checkout attempt: computes the order total from the
// cart as it stands now and renders it to the payment provider.
func (o *Orchestrator) Begin(ctx context.Context, cartID string) (*Session, error) {
	lines := o.carts.Get(ctx, cartID)
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	amount := o.rules.Total(cart.PricedLines(lines))

	paymentOrderID, err := o.gateway.CreateOrder(ctx, amount)
	if err != nil {
		return nil, fmt.Errorf("create payment order: %w", err)
	}

	now := time.Now()
	session := &Session{
		ID:             uuid.New().String(),
		CartID:         cartID,
		Status:         StatusIdle,
		Amount:         amount,
		PaymentOrderID: paymentOrderID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.transition(session, StatusAwaitingPayment); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.sessions[session.ID] = session
	o.mu.Unlock()

	log.Info().
		Str("checkout_id", session.ID).
		Str("cart_id", cartID).
		Str("amount", pricing.FormatAmount(amount)).
		Msg("checkout started")
	return session, nil
}

// Session returns the live session for the id.
func (o *Orchestrator) Session(checkoutID string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[checkoutID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Confirm completes the attempt after the buyer approves payment.
//
// The cart total is re-validated against the amount rendered at Begin
// before anything is captured: a cart mutated mid-approval aborts the
// capture and the attempt is discarded, so a fresh Begin renders the
// amount the buyer will actually pay. After a successful capture the
// order is snapshotted, its settlement tasks are enqueued, and the
// cart is cleared; settlement problems are logged, never shown to the
// buyer. The session is dropped once the attempt is over, whichever
// way it ends.
func (o *Orchestrator) Confirm(ctx context.Context, checkoutID string, mailingListOptIn bool) (*Order, error) {
	session, err := o.Session(checkoutID)
	if err != nil {
		return nil, err
	}

	// a double-clicked confirm button must not race past the status
	// guard and charge twice
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.Status != StatusAwaitingPayment {
		// a capture may have been reported for this attempt after the
		// winning confirm consumed the first one
		o.cancelPaymentOrder(ctx, session)
		return nil, fmt.Errorf("%w: cannot confirm from %s", ErrIllegalTransition, session.Status)
	}

	lines := o.carts.Get(ctx, session.CartID)
	current := o.rules.Total(cart.PricedLines(lines))
	if !current.Equal(session.Amount) {
		if err := o.transition(session, StatusIdle); err != nil {
			return nil, err
		}
		o.cancelPaymentOrder(ctx, session)
		o.remove(session.ID)
		log.Warn().
			Str("checkout_id", session.ID).
			Str("rendered", pricing.FormatAmount(session.Amount)).
			Str("current", pricing.FormatAmount(current)).
			Msg("cart changed since widget render, capture refused")
		return nil, ErrAmountMismatch
	}

	capture, err := o.gateway.CaptureOrder(ctx, session.PaymentOrderID)
	if err != nil {
		if terr := o.transition(session, StatusFailed); terr != nil {
			return nil, terr
		}
		o.cancelPaymentOrder(ctx, session)
		o.remove(session.ID)
		// cart is preserved so the buyer can retry from Begin
		log.Error().Err(err).Str("checkout_id", session.ID).Msg("payment capture failed")
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	if err := o.transition(session, StatusSettling); err != nil {
		return nil, err
	}

	subtotal := cart.Subtotal(lines)
	order := &Order{
		CheckoutID:       session.ID,
		Lines:            lines,
		Subtotal:         subtotal,
		Shipping:         o.rules.ShippingCost(subtotal),
		Total:            session.Amount,
		CustomerEmail:    capture.PayerEmail,
		CustomerName:     capture.PayerName,
		TransactionID:    capture.TransactionID,
		MailingListOptIn: mailingListOptIn,
		CapturedAt:       time.Now(),
	}

	o.settle(ctx, order)

	if err := o.carts.Clear(ctx, session.CartID); err != nil {
		// the payment is captured; a stale cart is the lesser problem
		log.Error().Err(err).Str("cart_id", session.CartID).Msg("failed to clear cart after capture")
	}

	if err := o.transition(session, StatusCompleted); err != nil {
		return nil, err
	}
	o.remove(session.ID)
	log.Info().
		Str("checkout_id", session.ID).
		Str("transaction_id", order.TransactionID).
		Msg("checkout completed")
	return order, nil
}

// remove drops a session that reached the end of its life. Confirms
// already holding the pointer fall through to the status guard.
func (o *Orchestrator) remove(checkoutID string) {
	o.mu.Lock()
	delete(o.sessions, checkoutID)
	o.mu.Unlock()
}

func (o *Orchestrator) cancelPaymentOrder(ctx context.Context, session *Session) {
	if err := o.gateway.CancelOrder(ctx, session.PaymentOrderID); err != nil {
		log.Warn().Err(err).Str("checkout_id", session.ID).Msg("failed to cancel payment order")
	}
}

// settle enqueues the notification and inventory tasks. The two are
// independent and unordered; neither failure blocks the other or the
// buyer's success path.
func (o *Orchestrator) settle(ctx context.Context, order *Order) {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		payload, err := json.Marshal(notificationPayload(order))
		if err != nil {
			return fmt.Errorf("marshal notification payload: %w", err)
		}
		_, err = o.dispatcher.Enqueue(ctx, order.TransactionID+":notify", TaskKindOrderNotification, payload, o.maxAttempts)
		return err
	})

	g.Go(func() error {
		payload, err := json.Marshal(inventoryPayload(order))
		if err != nil {
			return fmt.Errorf("marshal inventory payload: %w", err)
		}
		_, err = o.dispatcher.Enqueue(ctx, order.TransactionID+":inventory", TaskKindInventoryUpdate, payload, o.maxAttempts)
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("checkout_id", order.CheckoutID).Msg("failed to enqueue settlement task")
	}
}

func notificationPayload(order *Order) *relay.Order {
	items := make([]relay.OrderItem, 0, len(order.Lines))
	for _, l := range order.Lines {
		items = append(items, relay.OrderItem{Name: l.Name, Price: l.Price, Quantity: l.Quantity})
	}
	return &relay.Order{
		Items:            items,
		Subtotal:         pricing.FormatAmount(order.Subtotal),
		Shipping:         pricing.FormatAmount(order.Shipping),
		Total:            pricing.FormatAmount(order.Total),
		CustomerEmail:    order.CustomerEmail,
		CustomerName:     order.CustomerName,
		TransactionID:    order.TransactionID,
		MailingListOptIn: order.MailingListOptIn,
	}
}

func inventoryPayload(order *Order) *InventoryPayload {
	items := make([]inventory.PurchasedItem, 0, len(order.Lines))
	for _, l := range order.Lines {
		items = append(items, inventory.PurchasedItem{Name: l.Name, Image: l.Image, Quantity: l.Quantity})
	}
	return &InventoryPayload{Items: items}
}

// transition assumes the caller holds session.mu, or that the session
// is not yet published (Begin).
func (o *Orchestrator) transition(session *Session, to Status) error {
	if !CanTransitionTo(session.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, session.Status, to)
	}
	session.Status = to
	session.UpdatedAt = time.Now()
	return nil
}
