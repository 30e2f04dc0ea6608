package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// document is the wire shape of the catalog source:
// {"products": [{name, category, subcategory?, price, ...}]}.
// Ids are not part of the document; position defines them.
type document struct {
	Products []documentProduct `json:"products"`
}

type documentProduct struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	Featured    bool            `json:"featured"`
	Inventory   *int            `json:"inventory,omitempty"`
}

func decodeDocument(r io.Reader) ([]Product, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog document: %w", err)
	}

	products := make([]Product, 0, len(doc.Products))
	for i, p := range doc.Products {
		products = append(products, Product{
			ID:          i + 1, // position defines the stable synthetic id
			Name:        p.Name,
			Category:    p.Category,
			Subcategory: p.Subcategory,
			Price:       p.Price,
			Image:       p.Image,
			Description: p.Description,
			Featured:    p.Featured,
			Inventory:   p.Inventory,
		})
	}
	return products, nil
}

// FileLoader reads the catalog document from a local path.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(_ context.Context) ([]Product, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()
	return decodeDocument(f)
}

// HTTPLoader fetches the catalog document from a URL.
type HTTPLoader struct {
	URL    string
	Client *http.Client
}

func (l HTTPLoader) Load(ctx context.Context) ([]Product, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog: unexpected status %d", resp.StatusCode)
	}
	return decodeDocument(resp.Body)
}

// NewLoader picks a loader for the configured source: anything that
// looks like a URL is fetched, everything else is a local path.
func NewLoader(source string) Loader {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return HTTPLoader{URL: source}
	}
	return FileLoader{Path: source}
}
