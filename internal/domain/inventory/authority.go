// internal/domain/inventory/authority.go
package inventory

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrOutOfStock is returned when a reservation exceeds remaining stock
	ErrOutOfStock = errors.New("insufficient stock")

	// ErrUnreachable is returned when the authority cannot be contacted.
	// Callers must fail closed on reserve and fail open on release.
	ErrUnreachable = errors.New("inventory authority unreachable")
)

// Authority is the external system of record for stock counts. Reserve is
// an atomic check-and-decrement against remaining stock (stock minus the
// sum of unexpired holds); the remainder is never computed from a cached
// StockLevel on the caller's side.
//
// Holds coalesce per (cartID, sku, variantKey): reserving again for the
// same key grows the existing hold and refreshes its expiry.
type Authority interface {
	// GetStock returns current availability for a variant. Unknown
	// variants report zero availability rather than an error.
	GetStock(ctx context.Context, sku, variantKey string) (StockLevel, error)

	// Reserve places a hold for quantity units with the given TTL, or
	// returns ErrOutOfStock when remaining stock cannot cover it.
	Reserve(ctx context.Context, cartID, sku, variantKey string, quantity int, ttl time.Duration) (*Reservation, error)

	// Release gives back quantity units from the cart's hold on the
	// variant. A non-positive quantity releases the whole hold. Releasing
	// an absent hold is a no-op.
	Release(ctx context.Context, cartID, sku, variantKey string, quantity int) error
}
