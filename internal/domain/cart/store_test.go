// internal/domain/cart/store_test.go
package cart

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-core/internal/domain/identity"
	"github.com/your-org/storefront-core/internal/domain/inventory"
	"github.com/your-org/storefront-core/internal/domain/reservation"
)

func newTestStore(t *testing.T) (*Store, *inventory.MemoryAuthority) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	authority := inventory.NewMemoryAuthority()
	manager := reservation.NewManager(authority, 15*time.Minute, logger)
	return NewStore(manager), authority
}

func item(productID string, qty int, origin CatalogOrigin) LineItem {
	return LineItem{
		ProductID:     productID,
		Quantity:      qty,
		UnitPrice:     1999,
		CatalogOrigin: origin,
	}
}

func TestAddItemCreatesCartLazily(t *testing.T) {
	store, authority := newTestStore(t)
	authority.SetStock("p1", "", 10)
	owner := identity.Guest("g1")

	assert.Nil(t, store.Snapshot(owner, OriginCore))

	c, err := store.AddItem(context.Background(), owner, item("p1", 2, OriginCore))
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 2, authority.HeldQuantity(c.ID(), "p1", ""))
}

func TestAddItemIncrementsExistingKey(t *testing.T) {
	store, authority := newTestStore(t)
	authority.SetStock("p1", "", 10)
	owner := identity.Guest("g1")

	_, err := store.AddItem(context.Background(), owner, item("p1", 2, OriginCore))
	require.NoError(t, err)

	c, err := store.AddItem(context.Background(), owner, item("p1", 3, OriginCore))
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, 5, authority.HeldQuantity(c.ID(), "p1", ""))
}

func TestAddItemValidation(t *testing.T) {
	store, _ := newTestStore(t)
	owner := identity.Guest("g1")

	tests := []struct {
		name string
		item LineItem
	}{
		{"zero quantity", item("p1", 0, OriginCore)},
		{"negative quantity", item("p1", -1, OriginCore)},
		{"unknown origin", item("p1", 1, CatalogOrigin("bogus"))},
		{"missing product", item("", 1, OriginCore)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.AddItem(context.Background(), owner, tt.item)
			assert.Error(t, err)
		})
	}
}

func TestAddItemRejectionLeavesCartUntouched(t *testing.T) {
	store, authority := newTestStore(t)
	authority.SetStock("p1", "", 2)
	owner := identity.Guest("g1")

	_, err := store.AddItem(context.Background(), owner, item("p1", 2, OriginCore))
	require.NoError(t, err)

	_, err = store.AddItem(context.Background(), owner, item("p1", 1, OriginCore))
	assert.ErrorIs(t, err, inventory.ErrOutOfStock)

	c := store.Snapshot(owner, OriginCore)
	require.NotNil(t, c)
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestRemoveItemReleasesHold(t *testing.T) {
	store, authority := newTestStore(t)
	authority.SetStock("p1", "", 10)
	owner := identity.Guest("g1")

	_, err := store.AddItem(context.Background(), owner, item("p1", 2, OriginCore))
	require.NoError(t, err)

	c, err := store.RemoveItem(context.Background(), owner, OriginCore, "p1", "")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Zero(t, authority.HeldQuantity(ID(owner, OriginCore), "p1", ""))
}

func TestRemoveAbsentItemIsNoOp(t *testing.T) {
	store, _ := newTestStore(t)
	owner := identity.Guest("g1")

	_, err := store.RemoveItem(context.Background(), owner, OriginCore, "missing", "")
	assert.NoError(t, err)
}

func TestUpdateQuantityReservesOnlyTheDelta(t *testing.T) {
	store, authority := newTestStore(t)
	authority.SetStock("p1", "", 5)
	owner := identity.Guest("g1")

	_, err := store.AddItem(context.Background(), owner, item("p1", 2, OriginCore))
	require.NoError(t, err)

	c, err := store.UpdateQuantity(context.Background(), owner, OriginCore, "p1", "", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, 5, authority.HeldQuantity(c.ID(), "p1", ""))

	c, err = store.UpdateQuantity(context.Background(), owner, OriginCore, "p1", "", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Equal(t, 1, authority.HeldQuantity(c.ID(), "p1", ""))
}

func TestUpdateQuantityToZeroRemovesItem(t *testing.T) {
	store, authority := newTestStore(t)
	authority.SetStock("p1", "", 5)
	owner := identity.Guest("g1")

	_, err := store.AddItem(context.Background(), owner, item("p1", 2, OriginCore))
	require.NoError(t, err)

	c, err := store.UpdateQuantity(context.Background(), owner, OriginCore, "p1", "", 0)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Zero(t, authority.HeldQuantity(ID(owner, OriginCore), "p1", ""))
}

func TestUpdateQuantityMissingItem(t *testing.T) {
	store, _ := newTestStore(t)
	owner := identity.Guest("g1")

	_, err := store.UpdateQuantity(context.Background(), owner, OriginCore, "missing", "", 2)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestClearReleasesEveryHold(t *testing.T) {
	store, authority := newTestStore(t)
	authority.SetStock("p1", "", 5)
	authority.SetStock("p2", "red", 5)
	owner := identity.Guest("g1")

	_, err := store.AddItem(context.Background(), owner, item("p1", 2, OriginCore))
	require.NoError(t, err)
	li := item("p2", 1, OriginCore)
	li.VariantKey = "red"
	_, err = store.AddItem(context.Background(), owner, li)
	require.NoError(t, err)

	store.Clear(context.Background(), owner, OriginCore)

	assert.Nil(t, store.Snapshot(owner, OriginCore))
	assert.Zero(t, authority.HeldQuantity(ID(owner, OriginCore), "p1", ""))
	assert.Zero(t, authority.HeldQuantity(ID(owner, OriginCore), "p2", "red"))
}

func TestCartsAreIndependentPerIdentityAndCatalog(t *testing.T) {
	store, authority := newTestStore(t)
	authority.SetStock("p1", "", 10)

	guest := identity.Guest("g1")
	user := identity.User("u1")

	_, err := store.AddItem(context.Background(), guest, item("p1", 1, OriginCore))
	require.NoError(t, err)
	_, err = store.AddItem(context.Background(), user, item("p1", 2, OriginCore))
	require.NoError(t, err)
	_, err = store.AddItem(context.Background(), guest, item("p1", 3, OriginExtended))
	require.NoError(t, err)

	assert.Equal(t, 1, store.Snapshot(guest, OriginCore).Items[0].Quantity)
	assert.Equal(t, 2, store.Snapshot(user, OriginCore).Items[0].Quantity)
	assert.Equal(t, 3, store.Snapshot(guest, OriginExtended).Items[0].Quantity)
}

func TestTotalsAreDerived(t *testing.T) {
	store, authority := newTestStore(t)
	authority.SetStock("p1", "", 10)
	authority.SetStock("p2", "", 10)
	owner := identity.Guest("g1")

	_, err := store.AddItem(context.Background(), owner, item("p1", 2, OriginCore))
	require.NoError(t, err)
	_, err = store.AddItem(context.Background(), owner, item("p2", 3, OriginCore))
	require.NoError(t, err)

	totals := store.Snapshot(owner, OriginCore).Totals()
	assert.Equal(t, 2, totals.ItemCount)
	assert.Equal(t, 5, totals.TotalQuantity)
	assert.Equal(t, int64(5*1999), totals.SubTotal)
}

func TestSnapshotReturnsCopy(t *testing.T) {
	store, authority := newTestStore(t)
	authority.SetStock("p1", "", 10)
	owner := identity.Guest("g1")

	_, err := store.AddItem(context.Background(), owner, item("p1", 2, OriginCore))
	require.NoError(t, err)

	snap := store.Snapshot(owner, OriginCore)
	snap.Items[0].Quantity = 99

	assert.Equal(t, 2, store.Snapshot(owner, OriginCore).Items[0].Quantity)
}

func TestAdoptReplacesCart(t *testing.T) {
	store, authority := newTestStore(t)
	authority.SetStock("p1", "", 10)
	owner := identity.User("u1")

	_, err := store.AddItem(context.Background(), owner, item("p1", 1, OriginCore))
	require.NoError(t, err)

	adopted := &Cart{Owner: owner, Origin: OriginCore, Items: []LineItem{item("p1", 4, OriginCore)}}
	store.Adopt(adopted)

	assert.Equal(t, 4, store.Snapshot(owner, OriginCore).Items[0].Quantity)
}
