// internal/interfaces/http/handlers/cart_test.go
package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-core/internal/domain/cart"
	"github.com/your-org/storefront-core/internal/domain/cartsync"
	"github.com/your-org/storefront-core/internal/domain/checkout"
	"github.com/your-org/storefront-core/internal/domain/identity"
	"github.com/your-org/storefront-core/internal/domain/inventory"
	"github.com/your-org/storefront-core/internal/domain/reservation"
	"github.com/your-org/storefront-core/internal/interfaces/http/middleware"
)

// stubRepo is an in-memory cartsync.Repository for handler tests
type stubRepo struct {
	carts map[string]*cart.Cart
}

func newStubRepo() *stubRepo {
	return &stubRepo{carts: make(map[string]*cart.Cart)}
}

func (r *stubRepo) Get(_ context.Context, owner identity.Identity, origin cart.CatalogOrigin) (*cart.Cart, error) {
	c, ok := r.carts[cart.ID(owner, origin)]
	if !ok {
		return nil, cartsync.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *stubRepo) Put(_ context.Context, c *cart.Cart) error {
	r.carts[c.ID()] = c.Clone()
	return nil
}

func (r *stubRepo) Delete(_ context.Context, owner identity.Identity, origin cart.CatalogOrigin) error {
	delete(r.carts, cart.ID(owner, origin))
	return nil
}

func newCartHandlerFixture(t *testing.T) (*CartHandler, *cart.Store, *inventory.MemoryAuthority) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	authority := inventory.NewMemoryAuthority()
	manager := reservation.NewManager(authority, 15*time.Minute, logger)
	store := cart.NewStore(manager)
	syncer := cartsync.NewService(store, manager, newStubRepo(), newStubRepo(), logger, 0, time.Millisecond)
	facade := checkout.NewFacade(store, manager, syncer, map[cart.CatalogOrigin]checkout.Initiator{}, logger)

	return NewCartHandler(facade, syncer), store, authority
}

func mergeContext(t *testing.T, body, cookie string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.GuestCookieName, Value: cookie})
	}
	c.Request = req
	c.Set("cart_identity", identity.User("u1"))
	return w, c
}

func TestMergeGuestCartRejectsForeignSession(t *testing.T) {
	h, _, _ := newCartHandlerFixture(t)

	w, c := mergeContext(t, `{"guest_session_id":"g-theirs"}`, "g-mine")
	h.MergeGuestCart(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMergeGuestCartRequiresGuestCookie(t *testing.T) {
	h, _, _ := newCartHandlerFixture(t)

	w, c := mergeContext(t, `{"guest_session_id":"g-mine"}`, "")
	h.MergeGuestCart(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMergeGuestCartAcceptsOwnSession(t *testing.T) {
	h, store, authority := newCartHandlerFixture(t)
	authority.SetStock("p1", "", 5)

	guest := identity.Guest("g-mine")
	_, err := store.AddItem(context.Background(), guest, cart.LineItem{
		ProductID:     "p1",
		Quantity:      2,
		UnitPrice:     500,
		CatalogOrigin: cart.OriginCore,
	})
	require.NoError(t, err)

	w, c := mergeContext(t, `{"guest_session_id":"g-mine"}`, "g-mine")
	h.MergeGuestCart(c)
	require.Equal(t, http.StatusOK, w.Code)

	merged := store.Snapshot(identity.User("u1"), cart.OriginCore)
	require.NotNil(t, merged)
	assert.Equal(t, 2, merged.Items[0].Quantity)
	assert.Nil(t, store.Snapshot(guest, cart.OriginCore))
}
