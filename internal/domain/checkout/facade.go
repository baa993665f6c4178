// internal/domain/checkout/facade.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-core/internal/domain/cart"
	"github.com/your-org/storefront-core/internal/domain/cartsync"
	"github.com/your-org/storefront-core/internal/domain/identity"
	"github.com/your-org/storefront-core/internal/domain/reservation"
)

var (
	// ErrMixedCheckout rejects a single checkout across both catalogs;
	// they are independent transactional domains and must be checked out
	// one at a time.
	ErrMixedCheckout = errors.New("cart spans both catalogs; checkout each catalog separately")

	// ErrEmptyCart is returned when there is nothing to check out
	ErrEmptyCart = errors.New("cart is empty")

	// ErrCheckoutPending blocks mutations while a checkout is in flight
	ErrCheckoutPending = errors.New("checkout already in progress")
)

// State is the per-catalog cart lifecycle
type State string

const (
	StateEmpty           State = "empty"
	StatePopulated       State = "populated"
	StateCheckoutPending State = "checkout_pending"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

// Initiator starts a catalog's downstream checkout flow. The payment
// protocol behind it is opaque to the cart core.
type Initiator interface {
	BeginCheckout(ctx context.Context, snapshot *cart.Cart) (string, error)
}

// UnifiedView is the single logical cart presented to the shopper
type UnifiedView struct {
	Items  []cart.LineItem              `json:"items"`
	Totals cart.Totals                  `json:"totals"`
	States map[cart.CatalogOrigin]State `json:"states"`
}

// Result reports one catalog checkout attempt
type Result struct {
	Origin      cart.CatalogOrigin `json:"origin"`
	RedirectURL string             `json:"redirect_url,omitempty"`
	Notices     []cart.Notice      `json:"notices,omitempty"`
}

// Facade presents one logical cart over the two catalog-specific carts
// and routes checkout to the right downstream flow. Each catalog cart
// moves through Empty → Populated → CheckoutPending → Completed|Failed
// independently: a failed checkout on one catalog never touches the other.
type Facade struct {
	store        *cart.Store
	reservations *reservation.Manager
	sync         *cartsync.Service
	initiators   map[cart.CatalogOrigin]Initiator
	log          *logrus.Logger

	mu     sync.Mutex
	states map[string]State
}

// NewFacade creates the unified cart façade
func NewFacade(store *cart.Store, reservations *reservation.Manager, syncer *cartsync.Service, initiators map[cart.CatalogOrigin]Initiator, log *logrus.Logger) *Facade {
	return &Facade{
		store:        store,
		reservations: reservations,
		sync:         syncer,
		initiators:   initiators,
		log:          log,
		states:       make(map[string]State),
	}
}

// State reports the lifecycle state of one catalog cart
func (f *Facade) State(owner identity.Identity, origin cart.CatalogOrigin) State {
	f.mu.Lock()
	state, ok := f.states[cart.ID(owner, origin)]
	f.mu.Unlock()
	if ok {
		return state
	}

	if f.store.Snapshot(owner, origin) == nil {
		return StateEmpty
	}
	return StatePopulated
}

func (f *Facade) setState(owner identity.Identity, origin cart.CatalogOrigin, state State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[cart.ID(owner, origin)] = state
}

func (f *Facade) clearState(owner identity.Identity, origin cart.CatalogOrigin) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, cart.ID(owner, origin))
}

func (f *Facade) guardMutable(owner identity.Identity, origin cart.CatalogOrigin) error {
	if f.State(owner, origin) == StateCheckoutPending {
		return ErrCheckoutPending
	}
	return nil
}

// AddItem is the shopper-facing add operation: reserve, mutate, mirror
func (f *Facade) AddItem(ctx context.Context, owner identity.Identity, item cart.LineItem) (*cart.Cart, error) {
	if err := f.guardMutable(owner, item.CatalogOrigin); err != nil {
		return nil, err
	}

	c, err := f.store.AddItem(ctx, owner, item)
	if err != nil {
		return nil, err
	}

	f.clearState(owner, item.CatalogOrigin)
	f.sync.PushAsync(owner, item.CatalogOrigin)
	return c, nil
}

// RemoveItem deletes a line item; removing an absent item is a no-op
func (f *Facade) RemoveItem(ctx context.Context, owner identity.Identity, origin cart.CatalogOrigin, productID, variantKey string) (*cart.Cart, error) {
	if err := f.guardMutable(owner, origin); err != nil {
		return nil, err
	}

	c, err := f.store.RemoveItem(ctx, owner, origin, productID, variantKey)
	if err != nil {
		return nil, err
	}

	f.clearState(owner, origin)
	f.sync.PushAsync(owner, origin)
	return c, nil
}

// UpdateQuantity adjusts a line item; zero or below removes it
func (f *Facade) UpdateQuantity(ctx context.Context, owner identity.Identity, origin cart.CatalogOrigin, productID, variantKey string, quantity int) (*cart.Cart, error) {
	if err := f.guardMutable(owner, origin); err != nil {
		return nil, err
	}

	c, err := f.store.UpdateQuantity(ctx, owner, origin, productID, variantKey, quantity)
	if err != nil {
		return nil, err
	}

	f.clearState(owner, origin)
	f.sync.PushAsync(owner, origin)
	return c, nil
}

// ClearCart empties both catalog carts and releases every hold
func (f *Facade) ClearCart(ctx context.Context, owner identity.Identity) error {
	for _, origin := range cart.Origins {
		if err := f.guardMutable(owner, origin); err != nil {
			return err
		}
	}

	for _, origin := range cart.Origins {
		f.store.Clear(ctx, owner, origin)
		f.clearState(owner, origin)
		f.sync.PushAsync(owner, origin)
	}
	return nil
}

// UnifiedView merges both catalog carts into the single shopper-facing
// view: one tagged line-item list, summed totals, per-catalog states
func (f *Facade) UnifiedView(owner identity.Identity) *UnifiedView {
	view := &UnifiedView{
		Items:  []cart.LineItem{},
		States: make(map[cart.CatalogOrigin]State, len(cart.Origins)),
	}

	for _, origin := range cart.Origins {
		view.States[origin] = f.State(owner, origin)

		snapshot := f.store.Snapshot(owner, origin)
		if snapshot == nil {
			continue
		}

		view.Items = append(view.Items, snapshot.Items...)
		totals := snapshot.Totals()
		view.Totals.ItemCount += totals.ItemCount
		view.Totals.TotalQuantity += totals.TotalQuantity
		view.Totals.SubTotal += totals.SubTotal
	}

	return view
}

// Checkout routes the cart to its catalog's downstream flow. With items
// from both catalogs present it refuses: the shopper completes each
// catalog's checkout separately via CheckoutCatalog.
func (f *Facade) Checkout(ctx context.Context, owner identity.Identity) (*Result, error) {
	var present []cart.CatalogOrigin
	for _, origin := range cart.Origins {
		if f.store.Snapshot(owner, origin) != nil {
			present = append(present, origin)
		}
	}

	switch len(present) {
	case 0:
		return nil, ErrEmptyCart
	case 1:
		return f.CheckoutCatalog(ctx, owner, present[0])
	default:
		return nil, ErrMixedCheckout
	}
}

// CheckoutCatalog checks out one catalog's cart. Every line item's hold is
// re-validated first — stock may have moved since add-to-cart — and lapsed
// coverage demotes the line with a notice rather than failing the whole
// checkout. Only a fully re-validated cart enters CheckoutPending. On
// initiator failure the cart and its re-validated holds are retained.
func (f *Facade) CheckoutCatalog(ctx context.Context, owner identity.Identity, origin cart.CatalogOrigin) (*Result, error) {
	initiator, ok := f.initiators[origin]
	if !ok {
		return nil, fmt.Errorf("no checkout flow registered for catalog %q", origin)
	}

	if f.State(owner, origin) == StateCheckoutPending {
		return nil, ErrCheckoutPending
	}

	snapshot := f.store.Snapshot(owner, origin)
	if snapshot == nil {
		return nil, ErrEmptyCart
	}

	result := &Result{Origin: origin}
	cartID := cart.ID(owner, origin)

	for _, item := range snapshot.Items {
		granted, err := f.reservations.Revalidate(ctx, cartID, item.ProductID, item.VariantKey, item.Quantity)
		if err != nil {
			return nil, err
		}
		if granted == item.Quantity {
			continue
		}

		kind := cart.NoticeReservationExpired
		if granted == 0 {
			kind = cart.NoticeItemDropped
		}
		result.Notices = append(result.Notices, cart.Notice{
			Kind:       kind,
			ProductID:  item.ProductID,
			VariantKey: item.VariantKey,
			Origin:     origin,
			Requested:  item.Quantity,
			Granted:    granted,
		})
		f.store.Demote(owner, origin, item.ProductID, item.VariantKey, granted)
	}

	snapshot = f.store.Snapshot(owner, origin)
	if snapshot == nil {
		// everything the shopper held has been sold out from under them
		f.clearState(owner, origin)
		return result, ErrEmptyCart
	}

	f.setState(owner, origin, StateCheckoutPending)

	redirect, err := initiator.BeginCheckout(ctx, snapshot)
	if err != nil {
		f.setState(owner, origin, StateFailed)
		return result, fmt.Errorf("checkout failed for catalog %s: %w", origin, err)
	}

	f.setState(owner, origin, StateCompleted)
	f.store.Clear(ctx, owner, origin)
	f.sync.PushAsync(owner, origin)

	result.RedirectURL = redirect
	return result, nil
}
