package pricing

import "github.com/shopspring/decimal"

// Rules holds the shipping configuration. Amounts are in the same
// currency unit as catalog prices.
type Rules struct {
	FlatRate              decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// DefaultRules returns the documented defaults: $4.99 flat rate,
// free shipping at $35.00.
func DefaultRules() Rules {
	return Rules{
		FlatRate:              decimal.NewFromFloat(4.99),
		FreeShippingThreshold: decimal.NewFromInt(35),
	}
}

// Line is the minimal priced quantity the engine needs. Cart lines and
// order lines both satisfy it via ToPriced.
type Line struct {
	Price    decimal.Decimal
	Quantity int
}

// Subtotal sums price*quantity over all lines.
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// ShippingCost returns zero for an empty cart, zero at or above the
// free-shipping threshold, and the flat rate otherwise.
func (r Rules) ShippingCost(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() {
		return decimal.Zero
	}
	if subtotal.GreaterThanOrEqual(r.FreeShippingThreshold) {
		return decimal.Zero
	}
	return r.FlatRate
}

// Total is subtotal plus shipping.
func (r Rules) Total(lines []Line) decimal.Decimal {
	subtotal := Subtotal(lines)
	return subtotal.Add(r.ShippingCost(subtotal))
}

// AmountToFreeShipping returns how much more the buyer must add to
// qualify for free shipping, or zero if they already do.
func (r Rules) AmountToFreeShipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() || subtotal.GreaterThanOrEqual(r.FreeShippingThreshold) {
		return decimal.Zero
	}
	return r.FreeShippingThreshold.Sub(subtotal)
}

// FormatAmount renders a decimal with two fraction digits for display
// and wire payloads. Rounding happens only here, never in arithmetic.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
