// internal/domain/cartsync/service.go
package cartsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-core/internal/domain/cart"
	"github.com/your-org/storefront-core/internal/domain/identity"
	"github.com/your-org/storefront-core/internal/domain/reservation"
)

const pushTimeout = 10 * time.Second

// Service reconciles local cart state with the server-side mirrors: push
// after mutations, restore on app start, and the guest-to-user merge on
// login. Guest carts live in one repository, authenticated carts in
// another; the identity kind selects between them.
type Service struct {
	store        *cart.Store
	reservations *reservation.Manager
	guests       Repository
	users        Repository
	log          *logrus.Logger
	pushRetries  int
	pushBackoff  time.Duration
}

// NewService creates a cart synchronizer
func NewService(store *cart.Store, reservations *reservation.Manager, guests, users Repository, log *logrus.Logger, pushRetries int, pushBackoff time.Duration) *Service {
	return &Service{
		store:        store,
		reservations: reservations,
		guests:       guests,
		users:        users,
		log:          log,
		pushRetries:  pushRetries,
		pushBackoff:  pushBackoff,
	}
}

func (s *Service) repoFor(owner identity.Identity) Repository {
	if owner.IsGuest() {
		return s.guests
	}
	return s.users
}

// Push mirrors the current cart to the server, retrying on failure. The
// PUT is idempotent and last-write-wins, so retries are safe.
func (s *Service) Push(ctx context.Context, owner identity.Identity, origin cart.CatalogOrigin) error {
	repo := s.repoFor(owner)

	snapshot := s.store.Snapshot(owner, origin)

	var lastErr error
	for attempt := 0; attempt <= s.pushRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.pushBackoff):
			}
		}

		if snapshot == nil {
			lastErr = repo.Delete(ctx, owner, origin)
		} else {
			lastErr = repo.Put(ctx, snapshot)
		}
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("cart push for %s exhausted %d retries: %w", cart.ID(owner, origin), s.pushRetries, lastErr)
}

// PushAsync mirrors the cart in the background; fire-and-forget from the
// caller's perspective, failures are logged only.
func (s *Service) PushAsync(owner identity.Identity, origin cart.CatalogOrigin) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()

		if err := s.Push(ctx, owner, origin); err != nil {
			s.log.WithField("cart_id", cart.ID(owner, origin)).WithError(err).Warn("Cart push failed")
		}
	}()
}

// Restore reloads a persisted guest cart on app start and re-acquires its
// holds; holds are never persisted across a restart. Items whose stock no
// longer covers them are demoted, never dropped silently.
func (s *Service) Restore(ctx context.Context, guest identity.Identity) ([]cart.Notice, error) {
	var notices []cart.Notice

	for _, origin := range cart.Origins {
		persisted, err := s.guests.Get(ctx, guest, origin)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return notices, err
		}

		restored, originNotices, err := s.reacquire(ctx, guest, origin, persisted.Items, cart.NoticeReservationExpired)
		if err != nil {
			return notices, err
		}
		notices = append(notices, originNotices...)

		s.store.Adopt(restored)

		if len(originNotices) > 0 {
			if err := s.Push(ctx, guest, origin); err != nil {
				s.log.WithField("cart_id", restored.ID()).WithError(err).Warn("Cart push failed after restore")
			}
		}
	}

	return notices, nil
}

// MergeOnLogin folds the guest cart into the user's server-side cart:
// union of line items, overlapping keys sum, everything capped at what the
// reservation manager grants under the user identity. The guest cart and
// its holds are retired afterwards. Conflicts resolve deterministically by
// this rule; a merge never fails over disagreement, only over an
// unreachable authority.
func (s *Service) MergeOnLogin(ctx context.Context, guest, user identity.Identity) ([]cart.Notice, error) {
	var notices []cart.Notice

	for _, origin := range cart.Origins {
		guestCart := s.store.Snapshot(guest, origin)
		if guestCart == nil {
			// not hydrated locally; fall back to the persisted record
			if persisted, err := s.guests.Get(ctx, guest, origin); err == nil {
				guestCart = persisted
			}
		}

		userCart, err := s.users.Get(ctx, user, origin)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return notices, err
		}

		merged := mergeItems(userCart, guestCart)
		if len(merged) == 0 {
			continue
		}

		// the guest's own holds are given back first so they do not count
		// against the union re-acquired under the user identity
		s.reservations.ReleaseAll(ctx, cart.ID(guest, origin))

		result, originNotices, err := s.reacquire(ctx, user, origin, merged, cart.NoticeQuantityCapped)
		if err != nil {
			return notices, err
		}
		notices = append(notices, originNotices...)

		s.store.Adopt(result)

		if err := s.Push(ctx, user, origin); err != nil {
			s.log.WithField("cart_id", result.ID()).WithError(err).Warn("Cart push failed after merge")
		}

		if err := s.guests.Delete(ctx, guest, origin); err != nil {
			s.log.WithField("cart_id", cart.ID(guest, origin)).WithError(err).Warn("Failed to drop merged guest cart")
		}
	}

	s.store.Retire(guest)
	return notices, nil
}

// reacquire builds a cart owned by owner whose every line item is backed
// by a hold, demoting quantities the authority cannot cover and emitting a
// notice per adjustment.
func (s *Service) reacquire(ctx context.Context, owner identity.Identity, origin cart.CatalogOrigin, items []cart.LineItem, capKind cart.NoticeKind) (*cart.Cart, []cart.Notice, error) {
	cartID := cart.ID(owner, origin)
	now := time.Now().UTC()

	result := &cart.Cart{Owner: owner, Origin: origin, CreatedAt: now, UpdatedAt: now}
	var notices []cart.Notice

	for _, item := range items {
		granted, err := s.reservations.Revalidate(ctx, cartID, item.ProductID, item.VariantKey, item.Quantity)
		if err != nil {
			return nil, notices, err
		}

		if granted < item.Quantity {
			kind := capKind
			if granted == 0 {
				kind = cart.NoticeItemDropped
			}
			notices = append(notices, cart.Notice{
				Kind:       kind,
				ProductID:  item.ProductID,
				VariantKey: item.VariantKey,
				Origin:     origin,
				Requested:  item.Quantity,
				Granted:    granted,
			})
		}
		if granted == 0 {
			continue
		}

		item.Quantity = granted
		item.CatalogOrigin = origin
		result.Items = append(result.Items, item)
	}

	return result, notices, nil
}

// mergeItems unions the two carts' line items; overlapping keys sum
func mergeItems(userCart, guestCart *cart.Cart) []cart.LineItem {
	var merged []cart.LineItem
	index := make(map[cart.ItemKey]int)

	appendItems := func(c *cart.Cart) {
		if c == nil {
			return
		}
		for _, item := range c.Items {
			if i, ok := index[item.Key()]; ok {
				merged[i].Quantity += item.Quantity
				continue
			}
			index[item.Key()] = len(merged)
			merged = append(merged, item)
		}
	}

	appendItems(userCart)
	appendItems(guestCart)
	return merged
}
