// internal/domain/reservation/manager_test.go
package reservation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-core/internal/domain/inventory"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeAuthority lets individual tests script authority behavior
type fakeAuthority struct {
	getStockFn func(ctx context.Context, sku, variantKey string) (inventory.StockLevel, error)
	reserveFn  func(ctx context.Context, cartID, sku, variantKey string, quantity int, ttl time.Duration) (*inventory.Reservation, error)
	releaseFn  func(ctx context.Context, cartID, sku, variantKey string, quantity int) error
}

func (f *fakeAuthority) GetStock(ctx context.Context, sku, variantKey string) (inventory.StockLevel, error) {
	return f.getStockFn(ctx, sku, variantKey)
}

func (f *fakeAuthority) Reserve(ctx context.Context, cartID, sku, variantKey string, quantity int, ttl time.Duration) (*inventory.Reservation, error) {
	return f.reserveFn(ctx, cartID, sku, variantKey, quantity, ttl)
}

func (f *fakeAuthority) Release(ctx context.Context, cartID, sku, variantKey string, quantity int) error {
	return f.releaseFn(ctx, cartID, sku, variantKey, quantity)
}

func TestReserveCoalescesHolds(t *testing.T) {
	authority := inventory.NewMemoryAuthority()
	authority.SetStock("sku-1", "", 10)

	m := NewManager(authority, 15*time.Minute, testLogger())

	hold, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, hold.Quantity)

	hold, err = m.Reserve(context.Background(), "cart-a", "sku-1", "", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, hold.Quantity)

	assert.Equal(t, 5, m.Held("cart-a", "sku-1", ""))
	assert.Equal(t, 5, authority.HeldQuantity("cart-a", "sku-1", ""))
}

func TestReserveRejectsInsufficientStock(t *testing.T) {
	authority := inventory.NewMemoryAuthority()
	authority.SetStock("sku-1", "", 1)

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 2)
	assert.ErrorIs(t, err, inventory.ErrOutOfStock)
	assert.Zero(t, m.Held("cart-a", "sku-1", ""))
}

func TestLastUnitGoesToOneCart(t *testing.T) {
	authority := inventory.NewMemoryAuthority()
	authority.SetStock("sku-1", "", 1)

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 1)
	require.NoError(t, err)

	_, err = m.Reserve(context.Background(), "cart-b", "sku-1", "", 1)
	assert.ErrorIs(t, err, inventory.ErrOutOfStock)

	assert.Equal(t, 1, m.Held("cart-a", "sku-1", ""))
	assert.Zero(t, m.Held("cart-b", "sku-1", ""))
}

func TestReserveFailsClosedWhenAuthorityUnreachable(t *testing.T) {
	authority := &fakeAuthority{
		reserveFn: func(context.Context, string, string, string, int, time.Duration) (*inventory.Reservation, error) {
			return nil, inventory.ErrUnreachable
		},
	}

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 1)
	assert.ErrorIs(t, err, inventory.ErrUnreachable)
	assert.Zero(t, m.Held("cart-a", "sku-1", ""))
}

func TestReleaseFailsOpenWhenAuthorityUnreachable(t *testing.T) {
	releases := 0
	authority := &fakeAuthority{
		reserveFn: func(_ context.Context, _, sku, variantKey string, quantity int, ttl time.Duration) (*inventory.Reservation, error) {
			return &inventory.Reservation{SKU: sku, VariantKey: variantKey, Quantity: quantity, ExpiresAt: time.Now().Add(ttl)}, nil
		},
		releaseFn: func(context.Context, string, string, string, int) error {
			releases++
			return inventory.ErrUnreachable
		},
	}

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 2)
	require.NoError(t, err)

	// the local ledger drops the hold even though the authority call failed
	err = m.Release(context.Background(), "cart-a", "sku-1", "")
	assert.NoError(t, err)
	assert.Equal(t, 1, releases)
	assert.Zero(t, m.Held("cart-a", "sku-1", ""))
}

func TestReleaseIsIdempotent(t *testing.T) {
	authority := inventory.NewMemoryAuthority()
	authority.SetStock("sku-1", "", 5)

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 2)
	require.NoError(t, err)

	require.NoError(t, m.Release(context.Background(), "cart-a", "sku-1", ""))
	require.NoError(t, m.Release(context.Background(), "cart-a", "sku-1", ""))
	require.NoError(t, m.Release(context.Background(), "cart-b", "sku-1", ""))

	assert.Zero(t, authority.HeldQuantity("cart-a", "sku-1", ""))
}

func TestReleaseQuantityGivesBackPartialHold(t *testing.T) {
	authority := inventory.NewMemoryAuthority()
	authority.SetStock("sku-1", "", 5)

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 4)
	require.NoError(t, err)

	require.NoError(t, m.ReleaseQuantity(context.Background(), "cart-a", "sku-1", "", 3))
	assert.Equal(t, 1, m.Held("cart-a", "sku-1", ""))
	assert.Equal(t, 1, authority.HeldQuantity("cart-a", "sku-1", ""))

	// the freed units are reservable by another cart
	_, err = m.Reserve(context.Background(), "cart-b", "sku-1", "", 4)
	assert.NoError(t, err)
}

func TestReleaseAllDropsEveryHold(t *testing.T) {
	authority := inventory.NewMemoryAuthority()
	authority.SetStock("sku-1", "", 5)
	authority.SetStock("sku-2", "red", 5)

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 2)
	require.NoError(t, err)
	_, err = m.Reserve(context.Background(), "cart-a", "sku-2", "red", 3)
	require.NoError(t, err)

	m.ReleaseAll(context.Background(), "cart-a")

	assert.Empty(t, m.Holds("cart-a"))
	assert.Zero(t, authority.HeldQuantity("cart-a", "sku-1", ""))
	assert.Zero(t, authority.HeldQuantity("cart-a", "sku-2", "red"))
}

func TestExpiredHoldsLapsePassively(t *testing.T) {
	authority := inventory.NewMemoryAuthority()
	authority.SetStock("sku-1", "", 1)

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 1)
	require.NoError(t, err)

	// advance both clocks past the TTL; no timer fires anywhere
	future := time.Now().Add(16 * time.Minute)
	m.SetClock(func() time.Time { return future })
	authority.Now = func() time.Time { return future }

	assert.Zero(t, m.Held("cart-a", "sku-1", ""))

	// the lapsed unit is reservable again
	_, err = m.Reserve(context.Background(), "cart-b", "sku-1", "", 1)
	assert.NoError(t, err)
}

func TestRevalidateTopsUpExpiredCoverage(t *testing.T) {
	authority := inventory.NewMemoryAuthority()
	authority.SetStock("sku-1", "", 5)

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 3)
	require.NoError(t, err)

	future := time.Now().Add(16 * time.Minute)
	m.SetClock(func() time.Time { return future })
	authority.Now = func() time.Time { return future }

	granted, err := m.Revalidate(context.Background(), "cart-a", "sku-1", "", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, granted)
	assert.Equal(t, 3, m.Held("cart-a", "sku-1", ""))
}

func TestRevalidateDemotesWhenStockMovedOn(t *testing.T) {
	authority := inventory.NewMemoryAuthority()
	authority.SetStock("sku-1", "", 5)

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 3)
	require.NoError(t, err)

	// cart-a's hold lapses and another shopper takes most of the stock
	future := time.Now().Add(16 * time.Minute)
	m.SetClock(func() time.Time { return future })
	authority.Now = func() time.Time { return future }

	_, err = m.Reserve(context.Background(), "cart-b", "sku-1", "", 4)
	require.NoError(t, err)

	granted, err := m.Revalidate(context.Background(), "cart-a", "sku-1", "", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, granted)
	assert.Equal(t, 1, m.Held("cart-a", "sku-1", ""))
}

func TestRevalidateNeverGrantsMoreThanWanted(t *testing.T) {
	authority := inventory.NewMemoryAuthority()
	authority.SetStock("sku-1", "", 100)

	m := NewManager(authority, 15*time.Minute, testLogger())

	granted, err := m.Revalidate(context.Background(), "cart-a", "sku-1", "", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, granted)
	assert.Equal(t, 2, m.Held("cart-a", "sku-1", ""))
}

func TestRevalidateReplacesHoldSurvivingARestart(t *testing.T) {
	authority := inventory.NewMemoryAuthority()
	authority.SetStock("sku-1", "", 5)

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Reserve(context.Background(), "cart-a", "sku-1", "", 3)
	require.NoError(t, err)

	// a restart wipes the ledger while the authority-side hold lives on;
	// the fresh manager must not demote the line or double-count the hold
	fresh := NewManager(authority, 15*time.Minute, testLogger())

	granted, err := fresh.Revalidate(context.Background(), "cart-a", "sku-1", "", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, granted)
	assert.Equal(t, 3, fresh.Held("cart-a", "sku-1", ""))
	assert.Equal(t, 3, authority.HeldQuantity("cart-a", "sku-1", ""))
}

func TestRevalidateSurfacesUnreachableAuthority(t *testing.T) {
	authority := &fakeAuthority{
		reserveFn: func(context.Context, string, string, string, int, time.Duration) (*inventory.Reservation, error) {
			return nil, inventory.ErrUnreachable
		},
		releaseFn: func(context.Context, string, string, string, int) error {
			return inventory.ErrUnreachable
		},
	}

	m := NewManager(authority, 15*time.Minute, testLogger())

	_, err := m.Revalidate(context.Background(), "cart-a", "sku-1", "", 2)
	assert.True(t, errors.Is(err, inventory.ErrUnreachable))
}
