// internal/domain/inventory/memory_authority_test.go
package inventory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveChecksRemainingStock(t *testing.T) {
	a := NewMemoryAuthority()
	a.SetStock("sku-1", "", 3)

	_, err := a.Reserve(context.Background(), "cart-a", "sku-1", "", 2, time.Minute)
	require.NoError(t, err)

	_, err = a.Reserve(context.Background(), "cart-b", "sku-1", "", 2, time.Minute)
	assert.ErrorIs(t, err, ErrOutOfStock)

	_, err = a.Reserve(context.Background(), "cart-b", "sku-1", "", 1, time.Minute)
	assert.NoError(t, err)
}

func TestReserveUnknownVariant(t *testing.T) {
	a := NewMemoryAuthority()

	_, err := a.Reserve(context.Background(), "cart-a", "ghost", "", 1, time.Minute)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestGetStockSubtractsUnexpiredHolds(t *testing.T) {
	a := NewMemoryAuthority()
	a.SetStock("sku-1", "", 5)

	_, err := a.Reserve(context.Background(), "cart-a", "sku-1", "", 2, time.Minute)
	require.NoError(t, err)

	level, err := a.GetStock(context.Background(), "sku-1", "")
	require.NoError(t, err)
	assert.Equal(t, 3, level.Available)
}

func TestExpiredHoldsArePurgedOnNextCall(t *testing.T) {
	a := NewMemoryAuthority()
	a.SetStock("sku-1", "", 2)

	_, err := a.Reserve(context.Background(), "cart-a", "sku-1", "", 2, time.Minute)
	require.NoError(t, err)

	a.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	level, err := a.GetStock(context.Background(), "sku-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, level.Available)

	_, err = a.Reserve(context.Background(), "cart-b", "sku-1", "", 2, time.Minute)
	assert.NoError(t, err)
}

func TestReleaseSemantics(t *testing.T) {
	a := NewMemoryAuthority()
	a.SetStock("sku-1", "", 10)

	_, err := a.Reserve(context.Background(), "cart-a", "sku-1", "", 6, time.Minute)
	require.NoError(t, err)

	// partial release gives back only the delta
	require.NoError(t, a.Release(context.Background(), "cart-a", "sku-1", "", 2))
	assert.Equal(t, 4, a.HeldQuantity("cart-a", "sku-1", ""))

	// non-positive quantity drops the whole hold
	require.NoError(t, a.Release(context.Background(), "cart-a", "sku-1", "", 0))
	assert.Zero(t, a.HeldQuantity("cart-a", "sku-1", ""))

	// releasing an absent hold is a no-op
	assert.NoError(t, a.Release(context.Background(), "cart-a", "sku-1", "", 0))
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	a := NewMemoryAuthority()
	a.SetStock("sku-1", "", 5)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cartID := fmt.Sprintf("cart-%d", i)
			if _, err := a.Reserve(context.Background(), cartID, "sku-1", "", 1, time.Minute); err == nil {
				granted <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(granted)

	assert.Len(t, granted, 5)

	level, err := a.GetStock(context.Background(), "sku-1", "")
	require.NoError(t, err)
	assert.Zero(t, level.Available)
}
