package inventory

import "encoding/json"

// Document is the remotely persisted inventory file: the same products
// JSON the catalog is loaded from. The whole document is rewritten on
// every update, so every field must survive the round trip.
type Document struct {
	Products []Record `json:"products"`
}

// Record is one product entry in the document. Inventory is nil for
// items that are not counted; those are never decremented. Price is
// kept as json.Number: the store never computes with it, and a decimal
// type would re-emit it as a quoted string, changing the number typed
// in the source file.
type Record struct {
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory,omitempty"`
	Price       json.Number `json:"price"`
	Image       string      `json:"image"`
	Description string      `json:"description"`
	Featured    bool        `json:"featured"`
	Inventory   *int        `json:"inventory,omitempty"`
}

// PurchasedItem is one order line as the inventory endpoint receives
// it. Products are matched by name with the image ref as fallback;
// ids are not stable across document revisions.
type PurchasedItem struct {
	Name     string `json:"name"`
	Image    string `json:"image"`
	Quantity int    `json:"quantity"`
}

// ApplyPurchase decrements inventory counts for the purchased items,
// floored at zero. Items with no matching record, and records without
// an inventory count, are skipped. Returns how many records changed.
func (d *Document) ApplyPurchase(items []PurchasedItem) int {
	changed := 0
	for _, item := range items {
		rec := d.match(item)
		if rec == nil || rec.Inventory == nil {
			continue
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		next := *rec.Inventory - qty
		if next < 0 {
			next = 0
		}
		if next != *rec.Inventory {
			changed++
		}
		rec.Inventory = &next
	}
	return changed
}

func (d *Document) match(item PurchasedItem) *Record {
	for i := range d.Products {
		if d.Products[i].Name == item.Name {
			return &d.Products[i]
		}
	}
	if item.Image == "" {
		return nil
	}
	for i := range d.Products {
		if d.Products[i].Image == item.Image {
			return &d.Products[i]
		}
	}
	return nil
}
