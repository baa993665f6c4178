// internal/domain/cartsync/redis_repository.go
package cartsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/your-org/storefront-core/internal/domain/cart"
	"github.com/your-org/storefront-core/internal/domain/identity"
)

const cartKeyPrefix = "cart:"

// RedisRepository persists guest carts as TTL'd JSON blobs. Guest carts
// are expected to age out; the TTL matches the guest session lifetime.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository creates a Redis-backed cart mirror
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func cartKey(owner identity.Identity, origin cart.CatalogOrigin) string {
	return cartKeyPrefix + cart.ID(owner, origin)
}

// Get loads a persisted cart
func (r *RedisRepository) Get(ctx context.Context, owner identity.Identity, origin cart.CatalogOrigin) (*cart.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(owner, origin)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart %s: %w", cart.ID(owner, origin), err)
	}

	var c cart.Cart
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", cart.ID(owner, origin), err)
	}
	return &c, nil
}

// Put overwrites the persisted cart and refreshes its TTL
func (r *RedisRepository) Put(ctx context.Context, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cart %s: %w", c.ID(), err)
	}
	return r.client.Set(ctx, cartKeyPrefix+c.ID(), data, r.ttl).Err()
}

// Delete drops the persisted cart
func (r *RedisRepository) Delete(ctx context.Context, owner identity.Identity, origin cart.CatalogOrigin) error {
	return r.client.Del(ctx, cartKey(owner, origin)).Err()
}
