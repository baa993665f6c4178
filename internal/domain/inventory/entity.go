// internal/domain/inventory/entity.go
package inventory

import (
	"time"
)

// AlertKind represents the kind of stock alert
type AlertKind string

const (
	AlertLowStock   AlertKind = "low_stock"
	AlertOutOfStock AlertKind = "out_of_stock"
)

// StockLevel is the last known availability for a variant. It is a cache
// with no durability guarantee; checkout re-validates against the authority.
type StockLevel struct {
	SKU        string    `json:"sku"`
	VariantKey string    `json:"variant_key"`
	Available  int       `json:"available"`
	ObservedAt time.Time `json:"observed_at"`
}

// Reservation is a soft, time-boxed hold on stock issued by the authority
type Reservation struct {
	ID         string    `json:"id"`
	CartID     string    `json:"cart_id"`
	SKU        string    `json:"sku"`
	VariantKey string    `json:"variant_key"`
	Quantity   int       `json:"quantity"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the hold has lapsed at the given instant
func (r *Reservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Alert is an ephemeral stock-change notification. Alerts are advisory
// only: they are surfaced to the shopper and never mutate cart or
// reservation state.
type Alert struct {
	SKU        string    `json:"sku"`
	VariantKey string    `json:"variant_key"`
	Kind       AlertKind `json:"kind"`
	Quantity   int       `json:"quantity"`
}
