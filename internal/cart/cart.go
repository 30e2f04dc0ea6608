package cart

import (
	"github.com/shopspring/decimal"

	"github.com/jmbcrafts/storefront/internal/pricing"
)

// Line is one product entry in a cart. Name, price and image are
// snapshots taken when the product was first added: a later catalog
// price change does not reprice lines already in the cart.
type Line struct {
	ProductID int             `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

// Subtotal sums price*quantity over the lines.
func Subtotal(lines []Line) decimal.Decimal {
	return pricing.Subtotal(PricedLines(lines))
}

// ItemCount sums quantities over the lines.
func ItemCount(lines []Line) int {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return count
}

// PricedLines adapts cart lines for the pricing engine.
func PricedLines(lines []Line) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, pricing.Line{Price: l.Price, Quantity: l.Quantity})
	}
	return out
}
