// internal/domain/inventory/redis_alerts.go
package inventory

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisAlertSource delivers stock alerts from per-SKU Redis Pub/Sub
// channels. Delivery is at-most-once with no guarantee: Pub/Sub drops
// events published while nobody is connected, which matches the advisory
// nature of the alerts.
type RedisAlertSource struct {
	client        *redis.Client
	channelPrefix string
	log           *logrus.Logger
}

// NewRedisAlertSource creates a Pub/Sub backed alert source
func NewRedisAlertSource(client *redis.Client, channelPrefix string, log *logrus.Logger) *RedisAlertSource {
	return &RedisAlertSource{
		client:        client,
		channelPrefix: channelPrefix,
		log:           log,
	}
}

// Subscribe opens the Pub/Sub channel for one SKU
func (s *RedisAlertSource) Subscribe(ctx context.Context, sku string) (<-chan Alert, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channelPrefix+sku)

	// Confirm the subscription before handing out the channel
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	events := make(chan Alert)
	messages := pubsub.Channel()

	go func() {
		defer close(events)
		for msg := range messages {
			var alert Alert
			if err := json.Unmarshal([]byte(msg.Payload), &alert); err != nil {
				s.log.WithField("sku", sku).WithError(err).Warn("Dropping malformed stock alert")
				continue
			}
			events <- alert
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return events, cancel, nil
}
