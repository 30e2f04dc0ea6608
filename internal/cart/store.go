package cart

import "context"

// Store persists whole carts. Consumers define this interface, not the
// Redis implementation.
//
// A cart is stored as a single value: the serialized JSON array of its
// lines. There is exactly one writer per cart under normal use, so
// save is a plain overwrite (last write wins).
type Store interface {
	// Get returns the cart's lines. A missing or unreadable cart is an
	// empty cart, never an error the buyer sees.
	Get(ctx context.Context, cartID string) ([]Line, error)
	Save(ctx context.Context, cartID string, lines []Line) error
	Delete(ctx context.Context, cartID string) error
}
