package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product is one catalog entry. Instances are immutable after load;
// the id is synthetic and stable within one document revision
// (position in the document + 1).
type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	Featured    bool            `json:"featured"`
	// Inventory is nil for made-to-order items that are never counted.
	Inventory *int `json:"inventory,omitempty"`
}

// FormatCategoryName turns a slug like "thank-you" into "Thank You"
// for display.
func FormatCategoryName(category string) string {
	words := strings.Split(category, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
