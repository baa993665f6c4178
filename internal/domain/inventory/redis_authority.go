// internal/domain/inventory/redis_authority.go
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	stockKeyPrefix   = "stock:"
	holdsKeyPrefix   = "stock:holds:"
	holdQtyKeyPrefix = "stock:holdqty:"
)

// reserveScript purges expired holds, then performs the check-and-reserve
// atomically. Returns -1 for an unknown variant, -2 when remaining stock
// cannot cover the request, otherwise the availability left after the hold.
var reserveScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[3])
for _, m in ipairs(expired) do
	redis.call('HDEL', KEYS[3], m)
end
redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', ARGV[3])

local stock = tonumber(redis.call('GET', KEYS[1]) or '-1')
if stock < 0 then
	return -1
end

local reserved = 0
for _, q in ipairs(redis.call('HVALS', KEYS[3])) do
	reserved = reserved + tonumber(q)
end

local quantity = tonumber(ARGV[2])
if stock - reserved < quantity then
	return -2
end

redis.call('ZADD', KEYS[2], ARGV[4], ARGV[1])
redis.call('HINCRBY', KEYS[3], ARGV[1], quantity)
return stock - reserved - quantity
`)

// releaseScript decrements a hold, dropping it once empty. A non-positive
// quantity drops the whole hold. Safe to run for holds that never existed.
var releaseScript = redis.NewScript(`
if redis.call('ZSCORE', KEYS[1], ARGV[1]) == false then
	redis.call('HDEL', KEYS[2], ARGV[1])
	return 0
end

local quantity = tonumber(ARGV[2])
if quantity <= 0 then
	redis.call('ZREM', KEYS[1], ARGV[1])
	redis.call('HDEL', KEYS[2], ARGV[1])
	return 1
end

local left = redis.call('HINCRBY', KEYS[2], ARGV[1], -quantity)
if left <= 0 then
	redis.call('ZREM', KEYS[1], ARGV[1])
	redis.call('HDEL', KEYS[2], ARGV[1])
end
return 1
`)

// availableScript purges expired holds and returns remaining availability,
// or -1 for an unknown variant.
var availableScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, m in ipairs(expired) do
	redis.call('HDEL', KEYS[3], m)
end
redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])

local stock = tonumber(redis.call('GET', KEYS[1]) or '-1')
if stock < 0 then
	return -1
end

local reserved = 0
for _, q in ipairs(redis.call('HVALS', KEYS[3])) do
	reserved = reserved + tonumber(q)
end

if stock - reserved < 0 then
	return 0
end
return stock - reserved
`)

// RedisAuthority implements Authority on shared Redis counters, so every
// storefront instance contends against the same per-variant hold ledger.
type RedisAuthority struct {
	client             *redis.Client
	log                *logrus.Logger
	alertChannelPrefix string
	lowStockThreshold  int
}

// NewRedisAuthority creates a Redis-backed inventory authority. When
// alertChannelPrefix is non-empty, reservations that push availability to
// or below lowStockThreshold publish an advisory alert.
func NewRedisAuthority(client *redis.Client, log *logrus.Logger, alertChannelPrefix string, lowStockThreshold int) *RedisAuthority {
	return &RedisAuthority{
		client:             client,
		log:                log,
		alertChannelPrefix: alertChannelPrefix,
		lowStockThreshold:  lowStockThreshold,
	}
}

func variantKeys(sku, variantKey string) (stockKey, holdsKey, holdQtyKey string) {
	suffix := sku + ":" + variantKey
	return stockKeyPrefix + suffix, holdsKeyPrefix + suffix, holdQtyKeyPrefix + suffix
}

// GetStock returns availability after purging expired holds
func (a *RedisAuthority) GetStock(ctx context.Context, sku, variantKey string) (StockLevel, error) {
	stockKey, holdsKey, holdQtyKey := variantKeys(sku, variantKey)

	now := time.Now().UTC()
	available, err := availableScript.Run(ctx, a.client,
		[]string{stockKey, holdsKey, holdQtyKey}, now.UnixMilli()).Int()
	if err != nil {
		return StockLevel{}, fmt.Errorf("%w: stock lookup for %s/%s: %v", ErrUnreachable, sku, variantKey, err)
	}

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

// Reserve atomically places a hold against remaining stock
func (a *RedisAuthority) Reserve(ctx context.Context, cartID, sku, variantKey string, quantity int, ttl time.Duration) (*Reservation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("reservation quantity must be positive, got %d", quantity)
	}

	stockKey, holdsKey, holdQtyKey := variantKeys(sku, variantKey)

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	remaining, err := reserveScript.Run(ctx, a.client,
		[]string{stockKey, holdsKey, holdQtyKey},
		cartID, quantity, now.UnixMilli(), expiresAt.UnixMilli()).Int()
	if err != nil {
		return nil, fmt.Errorf("%w: reserve %d of %s/%s: %v", ErrUnreachable, quantity, sku, variantKey, err)
	}

	if remaining < 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrOutOfStock, sku, variantKey)
	}

	a.publishAlert(ctx, sku, variantKey, remaining)

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
func (a *RedisAuthority) Release(ctx context.Context, cartID, sku, variantKey string, quantity int) error {
	_, holdsKey, holdQtyKey := variantKeys(sku, variantKey)

	err := releaseScript.Run(ctx, a.client,
		[]string{holdsKey, holdQtyKey}, cartID, quantity).Err()
	if err != nil {
		return fmt.Errorf("%w: release hold on %s/%s: %v", ErrUnreachable, sku, variantKey, err)
	}
	return nil
}

// SetStock seeds or corrects the absolute stock count for a variant
func (a *RedisAuthority) SetStock(ctx context.Context, sku, variantKey string, quantity int) error {
	stockKey, _, _ := variantKeys(sku, variantKey)
	return a.client.Set(ctx, stockKey, quantity, 0).Err()
}

func (a *RedisAuthority) publishAlert(ctx context.Context, sku, variantKey string, remaining int) {
	if a.alertChannelPrefix == "" || remaining > a.lowStockThreshold {
		return
	}

	kind := AlertLowStock
	if remaining == 0 {
		kind = AlertOutOfStock
	}

	payload, err := json.Marshal(Alert{
		SKU:        sku,
		VariantKey: variantKey,
		Kind:       kind,
		Quantity:   remaining,
	})
	if err != nil {
		return
	}

	if err := a.client.Publish(ctx, a.alertChannelPrefix+sku, payload).Err(); err != nil {
		a.log.WithFields(logrus.Fields{
			"sku":         sku,
			"variant_key": variantKey,
		}).WithError(err).Warn("Failed to publish stock alert")
	}
}
