// internal/domain/reservation/manager.go
package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-core/internal/domain/inventory"
)

// Hold mirrors one cart's unexpired reservation on a variant
type Hold struct {
	SKU        string    `json:"sku"`
	VariantKey string    `json:"variant_key"`
	Quantity   int       `json:"quantity"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type holdKey struct {
	sku        string
	variantKey string
}

// Manager issues and releases stock holds through the Inventory Authority
// and keeps a local ledger per cart identity. The ledger is advisory
// bookkeeping for release-all, coupling checks and checkout re-validation;
// the authoritative remaining-stock check happens inside Authority.Reserve.
//
// Expiry is passive: lapsed holds are dropped from accounting on the next
// call rather than by a background timer. The authority purges by the same
// timestamps, so both views converge without coordination.
type Manager struct {
	authority inventory.Authority
	ttl       time.Duration
	log       *logrus.Logger

	mu    sync.Mutex
	holds map[string]map[holdKey]*Hold

	// now is the expiry clock; tests may override it
	now func() time.Time
}

// NewManager creates a reservation manager with a uniform hold TTL
func NewManager(authority inventory.Authority, ttl time.Duration, log *logrus.Logger) *Manager {
	return &Manager{
		authority: authority,
		ttl:       ttl,
		log:       log,
		holds:     make(map[string]map[holdKey]*Hold),
		now:       time.Now,
	}
}

// SetClock overrides the expiry clock. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Reserve places a hold for quantity additional units. Holds for the same
// (cart, sku, variant) coalesce and the expiry is refreshed. Reservation
// fails closed when the authority is unreachable: an optimistic success
// here could oversell during a backend outage.
func (m *Manager) Reserve(ctx context.Context, cartID, sku, variantKey string, quantity int) (*Hold, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("reservation quantity must be positive, got %d", quantity)
	}

	res, err := m.authority.Reserve(ctx, cartID, sku, variantKey, quantity, m.ttl)
	if err != nil {
		if errors.Is(err, inventory.ErrOutOfStock) {
			return nil, err
		}
		return nil, fmt.Errorf("reserve %d of %s/%s: %w", quantity, sku, variantKey, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeExpiredLocked(cartID)

	key := holdKey{sku: sku, variantKey: variantKey}
	if m.holds[cartID] == nil {
		m.holds[cartID] = make(map[holdKey]*Hold)
	}

	hold, ok := m.holds[cartID][key]
	if !ok {
		hold = &Hold{SKU: sku, VariantKey: variantKey}
		m.holds[cartID][key] = hold
	}
	hold.Quantity += quantity
	hold.ExpiresAt = res.ExpiresAt

	snapshot := *hold
	return &snapshot, nil
}

// Release drops the cart's whole hold on a variant. Idempotent: releasing
// a hold that does not exist is a no-op. Release fails open — an authority
// error is logged and swallowed, since a stale hold self-heals via TTL.
func (m *Manager) Release(ctx context.Context, cartID, sku, variantKey string) error {
	m.mu.Lock()
	m.purgeExpiredLocked(cartID)
	delete(m.holds[cartID], holdKey{sku: sku, variantKey: variantKey})
	m.mu.Unlock()

	if err := m.authority.Release(ctx, cartID, sku, variantKey, 0); err != nil {
		m.log.WithFields(logrus.Fields{
			"cart_id":     cartID,
			"sku":         sku,
			"variant_key": variantKey,
		}).WithError(err).Warn("Release failed; hold will lapse via TTL")
	}
	return nil
}

// ReleaseQuantity gives back part of a hold, used when a line item's
// quantity decreases. Fails open like Release.
func (m *Manager) ReleaseQuantity(ctx context.Context, cartID, sku, variantKey string, quantity int) error {
	if quantity <= 0 {
		return nil
	}

	m.mu.Lock()
	m.purgeExpiredLocked(cartID)
	key := holdKey{sku: sku, variantKey: variantKey}
	if hold, ok := m.holds[cartID][key]; ok {
		hold.Quantity -= quantity
		if hold.Quantity <= 0 {
			delete(m.holds[cartID], key)
		}
	}
	m.mu.Unlock()

	if err := m.authority.Release(ctx, cartID, sku, variantKey, quantity); err != nil {
		m.log.WithFields(logrus.Fields{
			"cart_id":     cartID,
			"sku":         sku,
			"variant_key": variantKey,
			"quantity":    quantity,
		}).WithError(err).Warn("Partial release failed; hold will lapse via TTL")
	}
	return nil
}

// ReleaseAll drops every hold owned by a cart identity, used on cart clear
func (m *Manager) ReleaseAll(ctx context.Context, cartID string) {
	m.mu.Lock()
	keys := make([]holdKey, 0, len(m.holds[cartID]))
	for key := range m.holds[cartID] {
		keys = append(keys, key)
	}
	delete(m.holds, cartID)
	m.mu.Unlock()

	for _, key := range keys {
		if err := m.authority.Release(ctx, cartID, key.sku, key.variantKey, 0); err != nil {
			m.log.WithFields(logrus.Fields{
				"cart_id":     cartID,
				"sku":         key.sku,
				"variant_key": key.variantKey,
			}).WithError(err).Warn("Release failed; hold will lapse via TTL")
		}
	}
}

// Held reports the unexpired quantity a cart holds on a variant
func (m *Manager) Held(cartID, sku, variantKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeExpiredLocked(cartID)
	if hold, ok := m.holds[cartID][holdKey{sku: sku, variantKey: variantKey}]; ok {
		return hold.Quantity
	}
	return 0
}

// Holds snapshots a cart's unexpired holds
func (m *Manager) Holds(cartID string) []Hold {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeExpiredLocked(cartID)
	snapshot := make([]Hold, 0, len(m.holds[cartID]))
	for _, hold := range m.holds[cartID] {
		snapshot = append(snapshot, *hold)
	}
	return snapshot
}

// Revalidate ensures the cart holds wanted units of a variant, re-acquiring
// anything that expired. It returns the quantity actually covered: less
// than wanted means stock moved on and the line item must be demoted. It
// never grants more than wanted, even if stock has since increased.
// Used at checkout time and when restoring a persisted cart.
func (m *Manager) Revalidate(ctx context.Context, cartID, sku, variantKey string, wanted int) (int, error) {
	if wanted <= 0 {
		return 0, nil
	}

	covered := m.Held(cartID, sku, variantKey)
	if covered >= wanted {
		return wanted, nil
	}

	if covered == 0 {
		// An empty ledger does not mean an empty authority: after a
		// restart the cart's hold may still be live server side. Drop it
		// so the re-reserve replaces it instead of stacking on top.
		if err := m.authority.Release(ctx, cartID, sku, variantKey, 0); err != nil {
			m.log.WithFields(logrus.Fields{
				"cart_id":     cartID,
				"sku":         sku,
				"variant_key": variantKey,
			}).WithError(err).Warn("Stale hold release failed before re-reserve")
		}
	}

	if _, err := m.Reserve(ctx, cartID, sku, variantKey, wanted-covered); err == nil {
		return wanted, nil
	} else if !errors.Is(err, inventory.ErrOutOfStock) {
		return covered, err
	}

	// The full top-up was rejected; grab whatever remains
	stock, err := m.authority.GetStock(ctx, sku, variantKey)
	if err != nil {
		return covered, fmt.Errorf("revalidate %s/%s: %w", sku, variantKey, err)
	}

	remainder := stock.Available
	if remainder > wanted-covered {
		remainder = wanted - covered
	}
	if remainder <= 0 {
		return covered, nil
	}

	if _, err := m.Reserve(ctx, cartID, sku, variantKey, remainder); err != nil {
		if errors.Is(err, inventory.ErrOutOfStock) {
			return covered, nil
		}
		return covered, err
	}
	return covered + remainder, nil
}

// locked
func (m *Manager) purgeExpiredLocked(cartID string) {
	now := m.now().UTC()
	for key, hold := range m.holds[cartID] {
		if !now.Before(hold.ExpiresAt) {
			delete(m.holds[cartID], key)
		}
	}
	if len(m.holds[cartID]) == 0 {
		delete(m.holds, cartID)
	}
}
