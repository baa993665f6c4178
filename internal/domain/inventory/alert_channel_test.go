// internal/domain/inventory/alert_channel_test.go
package inventory

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a scriptable upstream for one-SKU alert streams
type fakeSource struct {
	mu         sync.Mutex
	subscribes int
	cancels    int
	events     chan Alert
}

func (s *fakeSource) Subscribe(_ context.Context, sku string) (<-chan Alert, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribes++
	s.events = make(chan Alert, 8)
	events := s.events
	return events, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancels++
	}, nil
}

func (s *fakeSource) push(alert Alert) {
	s.mu.Lock()
	events := s.events
	s.mu.Unlock()
	events <- alert
}

func (s *fakeSource) closeStream() {
	s.mu.Lock()
	events := s.events
	s.mu.Unlock()
	close(events)
}

func (s *fakeSource) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes, s.cancels
}

func newTestChannel() (*AlertChannel, *fakeSource) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	source := &fakeSource{}
	return NewAlertChannel(source, logger), source
}

func receiveAlert(t *testing.T, events <-chan Alert) Alert {
	t.Helper()
	select {
	case alert := <-events:
		return alert
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for alert")
		return Alert{}
	}
}

func TestUpstreamOpensOnFirstSubscriberOnly(t *testing.T) {
	channel, source := newTestChannel()

	_, cancel1, err := channel.Subscribe("sku-1")
	require.NoError(t, err)
	defer cancel1()

	_, cancel2, err := channel.Subscribe("sku-1")
	require.NoError(t, err)
	defer cancel2()

	subscribes, _ := source.counts()
	assert.Equal(t, 1, subscribes)
	assert.Equal(t, []string{"sku-1"}, channel.ActiveSKUs())
}

func TestAlertsFanOutToEverySubscriber(t *testing.T) {
	channel, source := newTestChannel()

	eventsA, cancelA, err := channel.Subscribe("sku-1")
	require.NoError(t, err)
	defer cancelA()

	eventsB, cancelB, err := channel.Subscribe("sku-1")
	require.NoError(t, err)
	defer cancelB()

	alert := Alert{SKU: "sku-1", Kind: AlertLowStock, Quantity: 2}
	source.push(alert)

	assert.Equal(t, alert, receiveAlert(t, eventsA))
	assert.Equal(t, alert, receiveAlert(t, eventsB))
}

func TestLastUnsubscribeClosesUpstream(t *testing.T) {
	channel, source := newTestChannel()

	_, cancelA, err := channel.Subscribe("sku-1")
	require.NoError(t, err)
	_, cancelB, err := channel.Subscribe("sku-1")
	require.NoError(t, err)

	cancelA()
	_, cancels := source.counts()
	assert.Zero(t, cancels)

	cancelB()
	_, cancels = source.counts()
	assert.Equal(t, 1, cancels)
	assert.Empty(t, channel.ActiveSKUs())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	channel, source := newTestChannel()

	_, cancel, err := channel.Subscribe("sku-1")
	require.NoError(t, err)

	cancel()
	cancel()

	_, cancels := source.counts()
	assert.Equal(t, 1, cancels)
}

func TestDeadUpstreamReopensOnNextSubscribe(t *testing.T) {
	channel, source := newTestChannel()

	_, cancel, err := channel.Subscribe("sku-1")
	require.NoError(t, err)
	defer cancel()

	source.closeStream()

	// wait for the fan-out goroutine to mark the feed dead
	require.Eventually(t, func() bool {
		return len(channel.ActiveSKUs()) == 0
	}, time.Second, 5*time.Millisecond)

	events, cancel2, err := channel.Subscribe("sku-1")
	require.NoError(t, err)
	defer cancel2()

	subscribes, _ := source.counts()
	assert.Equal(t, 2, subscribes)

	// the reopened feed delivers again
	alert := Alert{SKU: "sku-1", Kind: AlertOutOfStock}
	source.push(alert)
	assert.Equal(t, alert, receiveAlert(t, events))
}

func TestSlowSubscriberNeverBlocksFanOut(t *testing.T) {
	channel, source := newTestChannel()

	// never read from this subscription
	_, cancelSlow, err := channel.Subscribe("sku-1")
	require.NoError(t, err)
	defer cancelSlow()

	events, cancel, err := channel.Subscribe("sku-1")
	require.NoError(t, err)
	defer cancel()

	// overflow the slow subscriber's buffer; delivery stays at-most-once
	// and the healthy subscriber keeps receiving
	for i := 0; i < subscriberBuffer*2; i++ {
		source.push(Alert{SKU: "sku-1", Kind: AlertLowStock, Quantity: i})
		receiveAlert(t, events)
	}
}

func TestSubscriptionsAreIndependentPerSKU(t *testing.T) {
	channel, source := newTestChannel()

	_, cancel1, err := channel.Subscribe("sku-1")
	require.NoError(t, err)
	defer cancel1()

	_, cancel2, err := channel.Subscribe("sku-2")
	require.NoError(t, err)
	defer cancel2()

	subscribes, _ := source.counts()
	assert.Equal(t, 2, subscribes)
	assert.ElementsMatch(t, []string{"sku-1", "sku-2"}, channel.ActiveSKUs())
}
