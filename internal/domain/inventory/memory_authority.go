// internal/domain/inventory/memory_authority.go
package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryHold struct {
	quantity  int
	expiresAt time.Time
}

// MemoryAuthority implements Authority in process with the same
// purge-then-check-and-reserve semantics as the Redis adapter. It backs
// local development and the domain test suites.
type MemoryAuthority struct {
	mu     sync.Mutex
	stocks map[string]int
	holds  map[string]map[string]*memoryHold

	// Now is the clock used for hold expiry; tests may override it.
	Now func() time.Time
}

// NewMemoryAuthority creates an empty in-memory inventory authority
func NewMemoryAuthority() *MemoryAuthority {
	return &MemoryAuthority{
		stocks: make(map[string]int),
		holds:  make(map[string]map[string]*memoryHold),
		Now:    time.Now,
	}
}

func memoryKey(sku, variantKey string) string {
	return sku + ":" + variantKey
}

// SetStock seeds the absolute stock count for a variant
func (a *MemoryAuthority) SetStock(sku, variantKey string, quantity int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stocks[memoryKey(sku, variantKey)] = quantity
}

// locked; drops lapsed holds and returns the unexpired reserved sum
func (a *MemoryAuthority) purgeAndSum(key string, now time.Time) int {
	reserved := 0
	for cartID, hold := range a.holds[key] {
		if !now.Before(hold.expiresAt) {
			delete(a.holds[key], cartID)
			continue
		}
		reserved += hold.quantity
	}
	return reserved
}

// GetStock returns availability after purging expired holds
func (a *MemoryAuthority) GetStock(ctx context.Context, sku, variantKey string) (StockLevel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := memoryKey(sku, variantKey)
	now := a.Now().UTC()

	available := a.stocks[key] - a.purgeAndSum(key, now)
	if available < 0 {
		available = 0
	}

	return StockLevel{
		SKU:        sku,
		VariantKey: variantKey,
		Available:  available,
		ObservedAt: now,
	}, nil
}

// Reserve atomically places or grows a hold against remaining stock
func (a *MemoryAuthority) Reserve(ctx context.Context, cartID, sku, variantKey string, quantity int, ttl time.Duration) (*Reservation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("reservation quantity must be positive, got %d", quantity)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := memoryKey(sku, variantKey)
	now := a.Now().UTC()

	stock, known := a.stocks[key]
	reserved := a.purgeAndSum(key, now)
	if !known || stock-reserved < quantity {
		return nil, fmt.Errorf("%w: %s/%s", ErrOutOfStock, sku, variantKey)
	}

	if a.holds[key] == nil {
		a.holds[key] = make(map[string]*memoryHold)
	}

	expiresAt := now.Add(ttl)
	held := quantity
	if existing, ok := a.holds[key][cartID]; ok {
		held += existing.quantity
	}
	a.holds[key][cartID] = &memoryHold{quantity: held, expiresAt: expiresAt}

	return &Reservation{
		ID:         fmt.Sprintf("%s/%s/%s", sku, variantKey, cartID),
		CartID:     cartID,
		SKU:        sku,
		VariantKey: variantKey,
		Quantity:   quantity,
		ExpiresAt:  expiresAt,
	}, nil
}

// Release gives quantity units back; non-positive quantity drops the hold
func (a *MemoryAuthority) Release(ctx context.Context, cartID, sku, variantKey string, quantity int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := memoryKey(sku, variantKey)
	hold, ok := a.holds[key][cartID]
	if !ok {
		return nil
	}

	if quantity <= 0 || hold.quantity-quantity <= 0 {
		delete(a.holds[key], cartID)
		return nil
	}
	hold.quantity -= quantity
	return nil
}

// HeldQuantity reports the unexpired hold a cart has on a variant
func (a *MemoryAuthority) HeldQuantity(cartID, sku, variantKey string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := memoryKey(sku, variantKey)
	a.purgeAndSum(key, a.Now().UTC())
	if hold, ok := a.holds[key][cartID]; ok {
		return hold.quantity
	}
	return 0
}
