// internal/domain/inventory/alert_channel.go
package inventory

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// subscriberBuffer bounds each subscriber's delivery queue. Fan-out never
// blocks on a slow subscriber; overflowing events are dropped, which keeps
// delivery at-most-once.
const subscriberBuffer = 16

// AlertSource is the upstream push connection for one SKU's stock events.
// The returned cancel func closes the connection; the event channel closes
// when the connection dies.
type AlertSource interface {
	Subscribe(ctx context.Context, sku string) (<-chan Alert, func(), error)
}

type alertFeed struct {
	cancel func()
	dead   bool
	nextID int
	subs   map[int]chan Alert
}

// AlertChannel fans stock alerts out to UI subscribers. Subscriptions are
// reference-counted per SKU: the upstream connection opens on the first
// subscriber and closes when the last one leaves. Alerts are advisory and
// never touch cart or reservation state; a dead upstream silently stops
// delivery without tearing anything else down.
type AlertChannel struct {
	source AlertSource
	log    *logrus.Logger

	mu    sync.Mutex
	feeds map[string]*alertFeed
}

// NewAlertChannel creates an alert fan-out over the given source
func NewAlertChannel(source AlertSource, log *logrus.Logger) *AlertChannel {
	return &AlertChannel{
		source: source,
		log:    log,
		feeds:  make(map[string]*alertFeed),
	}
}

// Subscribe registers interest in one SKU's stock alerts. The caller must
// invoke the returned cancel func when done; the delivery channel is never
// closed while the subscription is live.
func (c *AlertChannel) Subscribe(sku string) (<-chan Alert, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	feed, ok := c.feeds[sku]
	if !ok || feed.dead {
		events, cancel, err := c.source.Subscribe(context.Background(), sku)
		if err != nil {
			return nil, nil, err
		}

		feed = &alertFeed{
			cancel: cancel,
			subs:   make(map[int]chan Alert),
		}
		c.feeds[sku] = feed

		go c.fanOut(sku, feed, events)
	}

	id := feed.nextID
	feed.nextID++

	delivery := make(chan Alert, subscriberBuffer)
	feed.subs[id] = delivery

	unsubscribe := func() { c.unsubscribe(sku, feed, id) }
	return delivery, unsubscribe, nil
}

func (c *AlertChannel) fanOut(sku string, feed *alertFeed, events <-chan Alert) {
	for alert := range events {
		c.mu.Lock()
		for _, sub := range feed.subs {
			select {
			case sub <- alert:
			default:
			}
		}
		c.mu.Unlock()
	}

	// Upstream died or was cancelled. Alerts are best-effort: stop
	// delivering, keep existing subscriptions registered, and let the
	// next Subscribe call reopen the connection.
	c.mu.Lock()
	feed.dead = true
	c.mu.Unlock()

	c.log.WithField("sku", sku).Warn("Inventory alert stream ended")
}

func (c *AlertChannel) unsubscribe(sku string, feed *alertFeed, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := feed.subs[id]; !ok {
		return
	}
	delete(feed.subs, id)

	if len(feed.subs) == 0 {
		feed.cancel()
		if c.feeds[sku] == feed {
			delete(c.feeds, sku)
		}
	}
}

// ActiveSKUs reports which SKUs currently hold an upstream connection
func (c *AlertChannel) ActiveSKUs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	skus := make([]string, 0, len(c.feeds))
	for sku, feed := range c.feeds {
		if !feed.dead {
			skus = append(skus, sku)
		}
	}
	return skus
}
