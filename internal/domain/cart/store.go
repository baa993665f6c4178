// internal/domain/cart/store.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/your-org/storefront-core/internal/domain/identity"
	"github.com/your-org/storefront-core/internal/domain/reservation"
)

// ErrItemNotFound is returned when updating a line item that is not in the
// cart. Removal of an absent item is deliberately a no-op instead.
var ErrItemNotFound = errors.New("item not found in cart")

type entry struct {
	// serializes mutations of one cart so overlapping shopper actions
	// apply in submission order
	mu   sync.Mutex
	cart *Cart
}

// Store is the authoritative in-memory representation of shopper carts,
// one per (identity, catalog). Every mutation reserves stock first and
// touches the cart only on success, so line items and holds never diverge.
// Carts of different identities are fully independent.
type Store struct {
	reservations *reservation.Manager

	mu      sync.Mutex
	entries map[string]*entry
}

// NewStore creates a cart store backed by the given reservation manager
func NewStore(reservations *reservation.Manager) *Store {
	return &Store{
		reservations: reservations,
		entries:      make(map[string]*entry),
	}
}

func (s *Store) entryFor(owner identity.Identity, origin CatalogOrigin, create bool) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ID(owner, origin)
	e, ok := s.entries[id]
	if !ok && create {
		e = &entry{}
		s.entries[id] = e
	}
	return e
}

// AddItem reserves stock for the item and then inserts it, incrementing
// the quantity when the key already exists. On rejection the cart is left
// untouched and inventory.ErrOutOfStock is surfaced to the caller.
func (s *Store) AddItem(ctx context.Context, owner identity.Identity, item LineItem) (*Cart, error) {
	if item.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1, got %d", item.Quantity)
	}
	if !item.CatalogOrigin.Valid() {
		return nil, fmt.Errorf("unknown catalog origin: %q", item.CatalogOrigin)
	}
	if item.ProductID == "" {
		return nil, fmt.Errorf("product ID is required")
	}

	e := s.entryFor(owner, item.CatalogOrigin, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	cartID := ID(owner, item.CatalogOrigin)
	if _, err := s.reservations.Reserve(ctx, cartID, item.ProductID, item.VariantKey, item.Quantity); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if e.cart == nil {
		// carts are created lazily on first successful add
		e.cart = &Cart{Owner: owner, Origin: item.CatalogOrigin, CreatedAt: now}
	}

	if i := e.cart.find(item.ProductID, item.VariantKey); i >= 0 {
		e.cart.Items[i].Quantity += item.Quantity
		e.cart.Items[i].UnitPrice = item.UnitPrice
	} else {
		item.AddedAt = now
		e.cart.Items = append(e.cart.Items, item)
	}
	e.cart.UpdatedAt = now

	return e.cart.Clone(), nil
}

// RemoveItem deletes a line item and releases its hold. Removing an absent
// item is a no-op, never an error.
func (s *Store) RemoveItem(ctx context.Context, owner identity.Identity, origin CatalogOrigin, productID, variantKey string) (*Cart, error) {
	e := s.entryFor(owner, origin, false)
	if e == nil {
		return &Cart{Owner: owner, Origin: origin}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cart == nil {
		return &Cart{Owner: owner, Origin: origin}, nil
	}

	i := e.cart.find(productID, variantKey)
	if i < 0 {
		return e.cart.Clone(), nil
	}

	e.cart.Items = append(e.cart.Items[:i], e.cart.Items[i+1:]...)
	e.cart.UpdatedAt = time.Now().UTC()

	_ = s.reservations.Release(ctx, ID(owner, origin), productID, variantKey)

	return e.cart.Clone(), nil
}

// UpdateQuantity sets a line item's quantity. An increase reserves only
// the delta; a decrease releases the delta; zero or below removes the item.
func (s *Store) UpdateQuantity(ctx context.Context, owner identity.Identity, origin CatalogOrigin, productID, variantKey string, newQuantity int) (*Cart, error) {
	if newQuantity <= 0 {
		return s.RemoveItem(ctx, owner, origin, productID, variantKey)
	}

	e := s.entryFor(owner, origin, false)
	if e == nil {
		return nil, ErrItemNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cart == nil {
		return nil, ErrItemNotFound
	}

	i := e.cart.find(productID, variantKey)
	if i < 0 {
		return nil, ErrItemNotFound
	}

	cartID := ID(owner, origin)
	current := e.cart.Items[i].Quantity

	switch {
	case newQuantity > current:
		if _, err := s.reservations.Reserve(ctx, cartID, productID, variantKey, newQuantity-current); err != nil {
			return nil, err
		}
	case newQuantity < current:
		_ = s.reservations.ReleaseQuantity(ctx, cartID, productID, variantKey, current-newQuantity)
	}

	e.cart.Items[i].Quantity = newQuantity
	e.cart.UpdatedAt = time.Now().UTC()

	return e.cart.Clone(), nil
}

// Demote lowers a line item's quantity to what re-validation granted,
// removing the item when nothing was granted. Reservation state already
// reflects the granted amount, so no holds are touched here.
func (s *Store) Demote(owner identity.Identity, origin CatalogOrigin, productID, variantKey string, granted int) {
	e := s.entryFor(owner, origin, false)
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cart == nil {
		return
	}
	i := e.cart.find(productID, variantKey)
	if i < 0 {
		return
	}

	if granted <= 0 {
		e.cart.Items = append(e.cart.Items[:i], e.cart.Items[i+1:]...)
	} else {
		e.cart.Items[i].Quantity = granted
	}
	e.cart.UpdatedAt = time.Now().UTC()
}

// Clear removes every line item of one catalog cart and releases all of
// its holds
func (s *Store) Clear(ctx context.Context, owner identity.Identity, origin CatalogOrigin) {
	e := s.entryFor(owner, origin, false)
	if e == nil {
		return
	}

	e.mu.Lock()
	e.cart = nil
	e.mu.Unlock()

	s.reservations.ReleaseAll(ctx, ID(owner, origin))
}

// Snapshot returns a copy of one catalog cart, or nil when it is empty
func (s *Store) Snapshot(owner identity.Identity, origin CatalogOrigin) *Cart {
	e := s.entryFor(owner, origin, false)
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cart == nil || len(e.cart.Items) == 0 {
		return nil
	}
	return e.cart.Clone()
}

// Adopt installs a cart whose holds were already acquired by the caller,
// replacing any existing cart for the same identity and catalog. Used by
// the synchronizer for restore and merge.
func (s *Store) Adopt(c *Cart) {
	e := s.entryFor(c.Owner, c.Origin, true)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cart = c.Clone()
}

// Retire drops every cart of an identity without touching reservations.
// The synchronizer releases or transfers holds before retiring a guest.
func (s *Store) Retire(owner identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, origin := range Origins {
		delete(s.entries, ID(owner, origin))
	}
}
