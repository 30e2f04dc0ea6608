package cart

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/jmbcrafts/storefront/internal/catalog"
)

// Notifier is the hook point for the storefront UI: cart badge refresh
// and the transient "added to cart" confirmation.
type Notifier interface {
	CartChanged(cartID string, itemCount int)
	ItemAdded(cartID string, productName string)
}

type noopNotifier struct{}

func (noopNotifier) CartChanged(string, int)  {}
func (noopNotifier) ItemAdded(string, string) {}

// Service owns every cart mutation. Product name/price/image are
// snapshotted from the catalog when a line is first added.
type Service struct {
	store    Store
	catalog  *catalog.Catalog
	notifier Notifier
}

func NewService(store Store, cat *catalog.Catalog, notifier Notifier) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{store: store, catalog: cat, notifier: notifier}
}

// Get returns the cart's lines, treating unreadable state as empty.
func (s *Service) Get(ctx context.Context, cartID string) []Line {
	lines, err := s.store.Get(ctx, cartID)
	if err != nil {
		log.Warn().Str("cart_id", cartID).Err(err).Msg("cart read failed, serving empty cart")
		return []Line{}
	}
	return lines
}

// AddItem adds quantity of the product to the cart. An unknown product
// id is a silent no-op reported as false. An existing line for the
// product has its quantity incremented; a new line snapshots the
// product's current name, price and image.
func (s *Service) AddItem(ctx context.Context, cartID string, productID, quantity int) (bool, error) {
	product, err := s.catalog.Current().ProductByID(productID)
	if err != nil {
		return false, nil
	}

	lines := s.Get(ctx, cartID)
	found := false
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, Line{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Image:     product.Image,
			Quantity:  quantity,
		})
	}

	if err := s.store.Save(ctx, cartID, lines); err != nil {
		return false, err
	}

	s.notifier.ItemAdded(cartID, product.Name)
	s.notifier.CartChanged(cartID, ItemCount(lines))
	return true, nil
}

// RemoveItem deletes the line for the product. Removing a line that
// does not exist is a no-op, not an error.
func (s *Service) RemoveItem(ctx context.Context, cartID string, productID int) ([]Line, error) {
	lines := s.Get(ctx, cartID)
	kept := lines[:0]
	for _, l := range lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}

	if err := s.store.Save(ctx, cartID, kept); err != nil {
		return nil, err
	}
	s.notifier.CartChanged(cartID, ItemCount(kept))
	return kept, nil
}

// SetQuantity overwrites the quantity on the matching line. A quantity
// of zero or less removes the line. No matching line leaves the cart
// unchanged.
func (s *Service) SetQuantity(ctx context.Context, cartID string, productID, quantity int) ([]Line, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, cartID, productID)
	}

	lines := s.Get(ctx, cartID)
	changed := false
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = quantity
			changed = true
			break
		}
	}
	if !changed {
		return lines, nil
	}

	if err := s.store.Save(ctx, cartID, lines); err != nil {
		return nil, err
	}
	s.notifier.CartChanged(cartID, ItemCount(lines))
	return lines, nil
}

// ChangeQuantity adjusts the matching line's quantity by delta, which
// may be negative. A resulting non-positive quantity removes the line.
func (s *Service) ChangeQuantity(ctx context.Context, cartID string, productID, delta int) ([]Line, error) {
	lines := s.Get(ctx, cartID)
	for _, l := range lines {
		if l.ProductID == productID {
			return s.SetQuantity(ctx, cartID, productID, l.Quantity+delta)
		}
	}
	return lines, nil
}

// Clear empties the cart unconditionally.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	if err := s.store.Delete(ctx, cartID); err != nil {
		return err
	}
	s.notifier.CartChanged(cartID, 0)
	return nil
}

// Subtotal recomputes the items-only subtotal from persisted state.
func (s *Service) Subtotal(ctx context.Context, cartID string) decimal.Decimal {
	return Subtotal(s.Get(ctx, cartID))
}

// ItemCount recomputes the total quantity from persisted state.
func (s *Service) ItemCount(ctx context.Context, cartID string) int {
	return ItemCount(s.Get(ctx, cartID))
}
