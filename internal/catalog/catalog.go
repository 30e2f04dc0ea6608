package catalog

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

var ErrProductNotFound = errors.New("product not found")

// Loader fetches the current catalog document from wherever it lives
// (local file, HTTP URL).
type Loader interface {
	Load(ctx context.Context) ([]Product, error)
}

// Snapshot is one immutable revision of the catalog. Queries never see
// a half-refreshed catalog: a refresh builds a whole new Snapshot and
// swaps it in.
type Snapshot struct {
	products   []Product
	byID       map[int]Product
	categories []string
}

func newSnapshot(products []Product) *Snapshot {
	s := &Snapshot{
		products: products,
		byID:     make(map[int]Product, len(products)),
	}
	seen := make(map[string]bool)
	for _, p := range products {
		s.byID[p.ID] = p
		if !seen[p.Category] {
			seen[p.Category] = true
			s.categories = append(s.categories, p.Category)
		}
	}
	return s
}

// Products returns all products in document order.
func (s *Snapshot) Products() []Product { return s.products }

// Categories returns the category taxonomy in first-seen order.
func (s *Snapshot) Categories() []string { return s.categories }

func (s *Snapshot) ProductByID(id int) (Product, error) {
	p, ok := s.byID[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (s *Snapshot) Featured() []Product {
	var out []Product
	for _, p := range s.products {
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}

// ByCategory returns all products when category is empty or "all".
func (s *Snapshot) ByCategory(category string) []Product {
	if category == "" || category == "all" {
		return s.products
	}
	var out []Product
	for _, p := range s.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func (s *Snapshot) BySubcategory(subcategory string) []Product {
	var out []Product
	for _, p := range s.products {
		if p.Subcategory == subcategory {
			out = append(out, p)
		}
	}
	return out
}

// Catalog owns the current snapshot. Consumers read through Current;
// Refresh replaces the snapshot wholesale. Concurrent refreshes are
// collapsed into a single load.
type Catalog struct {
	loader  Loader
	current atomic.Pointer[Snapshot]
	sfg     singleflight.Group
}

// New loads the initial snapshot eagerly so consumers never observe an
// empty catalog at startup.
func New(ctx context.Context, loader Loader) (*Catalog, error) {
	c := &Catalog{loader: loader}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Current returns the active snapshot.
func (c *Catalog) Current() *Snapshot {
	return c.current.Load()
}

// Refresh loads a fresh document and swaps it in. On load failure the
// previous snapshot stays active.
func (c *Catalog) Refresh(ctx context.Context) error {
	_, err, _ := c.sfg.Do("refresh", func() (interface{}, error) {
		products, err := c.loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		c.current.Store(newSnapshot(products))
		return nil, nil
	})
	return err
}
