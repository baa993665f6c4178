// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/your-org/storefront-core/internal/domain/identity"
)

// CatalogOrigin tags which backend catalog a line item belongs to. The two
// catalogs are independent transactional domains with separate checkouts.
type CatalogOrigin string

const (
	OriginCore     CatalogOrigin = "core"
	OriginExtended CatalogOrigin = "extended"
)

// Origins lists the catalogs in display order
var Origins = []CatalogOrigin{OriginCore, OriginExtended}

// Valid reports whether the origin names a known catalog
func (o CatalogOrigin) Valid() bool {
	return o == OriginCore || o == OriginExtended
}

// LineItem is one selected variant. Unique per
// (ProductID, VariantKey, CatalogOrigin) within a cart; adding an existing
// key increments quantity instead of duplicating.
type LineItem struct {
	ProductID     string        `json:"product_id"`
	VariantKey    string        `json:"variant_key"`
	Quantity      int           `json:"quantity"`
	UnitPrice     int64         `json:"unit_price"` // cents, captured at add time
	CatalogOrigin CatalogOrigin `json:"catalog_origin"`
	AddedAt       time.Time     `json:"added_at"`
}

// ItemKey identifies a line item within a cart
type ItemKey struct {
	ProductID  string
	VariantKey string
	Origin     CatalogOrigin
}

// Key returns the line item's identity within a cart
func (li LineItem) Key() ItemKey {
	return ItemKey{ProductID: li.ProductID, VariantKey: li.VariantKey, Origin: li.CatalogOrigin}
}

// Totals are always derived from line items, never stored, so they cannot
// drift from the cart's contents.
type Totals struct {
	ItemCount     int   `json:"item_count"`     // unique line items
	TotalQuantity int   `json:"total_quantity"` // sum of quantities
	SubTotal      int64 `json:"sub_total"`      // cents
}

// Cart holds one identity's selection for one catalog
type Cart struct {
	Owner     identity.Identity `json:"owner"`
	Origin    CatalogOrigin     `json:"origin"`
	Items     []LineItem        `json:"items"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ID is the cart's key for reservations and persistence
func (c *Cart) ID() string {
	return ID(c.Owner, c.Origin)
}

// ID builds the cart key for an identity and catalog pair
func ID(owner identity.Identity, origin CatalogOrigin) string {
	return owner.String() + "|" + string(origin)
}

// Totals computes derived totals. Pure; no side effects.
func (c *Cart) Totals() Totals {
	var t Totals
	t.ItemCount = len(c.Items)
	for _, item := range c.Items {
		t.TotalQuantity += item.Quantity
		t.SubTotal += item.UnitPrice * int64(item.Quantity)
	}
	return t
}

// find returns the index of the line item with the given key, or -1
func (c *Cart) find(productID, variantKey string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].VariantKey == variantKey {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy safe to hand to callers
func (c *Cart) Clone() *Cart {
	clone := *c
	clone.Items = make([]LineItem, len(c.Items))
	copy(clone.Items, c.Items)
	return &clone
}

// NoticeKind classifies shopper-facing cart adjustments
type NoticeKind string

const (
	// NoticeQuantityCapped: a merge or re-validation reduced a quantity
	NoticeQuantityCapped NoticeKind = "quantity_capped"
	// NoticeItemDropped: no stock remained for the line item at all
	NoticeItemDropped NoticeKind = "item_dropped"
	// NoticeReservationExpired: a lapsed hold could not be fully re-acquired
	NoticeReservationExpired NoticeKind = "reservation_expired"
)

// Notice informs the shopper about an adjustment the system made to their
// cart. Stock contention is never resolved by silently dropping items.
type Notice struct {
	Kind       NoticeKind    `json:"kind"`
	ProductID  string        `json:"product_id"`
	VariantKey string        `json:"variant_key"`
	Origin     CatalogOrigin `json:"origin"`
	Requested  int           `json:"requested"`
	Granted    int           `json:"granted"`
}
