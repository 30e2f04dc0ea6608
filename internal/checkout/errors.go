package checkout

import "errors"

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrSessionNotFound   = errors.New("checkout session not found")
	ErrIllegalTransition = errors.New("illegal transition of checkout status")
	// ErrAmountMismatch means the cart changed between rendering the
	// payment widget and capture; the attempt must be restarted.
	ErrAmountMismatch = errors.New("cart total no longer matches the rendered amount")
	ErrPaymentFailed  = errors.New("payment capture failed")
)
