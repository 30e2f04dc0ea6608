package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmbcrafts/storefront/internal/cart"
)

// Order is the cart snapshot taken at payment confirmation, plus payer
// identity and the external transaction id. It exists only to be
// relayed downstream; nothing persists it.
type Order struct {
	CheckoutID       string
	Lines            []cart.Line
	Subtotal         decimal.Decimal
	Shipping         decimal.Decimal
	Total            decimal.Decimal
	CustomerEmail    string
	CustomerName     string
	TransactionID    string
	MailingListOptIn bool
	CapturedAt       time.Time
}

// Capture is the payment provider's report of a completed capture.
type Capture struct {
	TransactionID string
	PayerEmail    string
	PayerName     string
}
