// internal/domain/cartsync/repository.go
package cartsync

import (
	"context"
	"errors"

	"github.com/your-org/storefront-core/internal/domain/cart"
	"github.com/your-org/storefront-core/internal/domain/identity"
)

// ErrNotFound is returned when no cart record exists for an identity
var ErrNotFound = errors.New("cart not found")

// Repository mirrors carts server side. The server never originates item
// selection, so Put is an idempotent last-write-wins overwrite.
type Repository interface {
	Get(ctx context.Context, owner identity.Identity, origin cart.CatalogOrigin) (*cart.Cart, error)
	Put(ctx context.Context, c *cart.Cart) error
	Delete(ctx context.Context, owner identity.Identity, origin cart.CatalogOrigin) error
}
