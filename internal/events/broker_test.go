package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBroker() *Broker {
	return NewBroker(zap.NewNop().Sugar(), 25*time.Second, time.Minute)
}

func TestPublishReachesSubscriber(t *testing.T) {
	b := newTestBroker()

	sub := b.Subscribe(1)
	defer sub.Close()

	b.Publish(1, OrderAccepted, `{"id":5}`)

	select {
	case ev := <-sub.C:
		assert.Equal(t, OrderAccepted, ev.Name)
		assert.Equal(t, `{"id":5}`, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("event never arrived")
	}
}

func TestPublishIsScopedToRequest(t *testing.T) {
	b := newTestBroker()

	sub1 := b.Subscribe(1)
	defer sub1.Close()
	sub2 := b.Subscribe(2)
	defer sub2.Close()

	b.Publish(1, OrderAddedToRequest, "{}")

	select {
	case ev := <-sub1.C:
		assert.Equal(t, OrderAddedToRequest, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("event never arrived on the right stream")
	}

	select {
	case ev := <-sub2.C:
		t.Fatalf("unexpected event on other request's stream: %v", ev)
	default:
	}
}

func TestPublishWithoutSubscriberIsNoop(t *testing.T) {
	b := newTestBroker()

	// Must not panic or block.
	b.Publish(99, PaymentConfirmed, "{}")
	assert.Equal(t, 0, b.Len())
}

func TestNewSubscriberDisplacesOld(t *testing.T) {
	b := newTestBroker()

	old := b.Subscribe(1)
	replacement := b.Subscribe(1)
	defer replacement.Close()

	// The displaced channel closes so the old handler returns.
	select {
	case _, open := <-old.C:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("displaced channel never closed")
	}

	b.Publish(1, SupplyConfirmed, "{}")

	select {
	case ev := <-replacement.C:
		assert.Equal(t, SupplyConfirmed, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("replacement never got the event")
	}

	assert.Equal(t, 1, b.Len())
}

func TestCloseIsIdempotent(t *testing.T) {
	b := newTestBroker()

	sub := b.Subscribe(1)
	sub.Close()
	sub.Close()

	assert.Equal(t, 0, b.Len())
}

func TestStalledSubscriberIsDropped(t *testing.T) {
	b := newTestBroker()

	sub := b.Subscribe(1)

	// Overrun the buffer without draining; the broker must drop the
	// subscription rather than block the workflow.
	for i := 0; i < 16; i++ {
		b.Publish(1, OrderAccepted, "{}")
	}

	assert.Equal(t, 0, b.Len())

	// Drain what was buffered; the channel must end up closed.
	for {
		_, open := <-sub.C
		if !open {
			break
		}
	}
}

// Teardown (disconnect, displacement, shutdown) must be atomic with respect
// to concurrent publishes: a send must never hit a channel that teardown just
// closed.
func TestPublishDuringTeardownNeverPanics(t *testing.T) {
	b := newTestBroker()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					b.Publish(1, OrderAccepted, "{}")
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		sub := b.Subscribe(1)
		go func() {
			// Drain so some publishes land and some race the close.
			for range sub.C {
			}
		}()
		sub.Close()
	}
	b.Close()

	close(stop)
	wg.Wait()
}

func TestBrokerCloseClosesAllChannels(t *testing.T) {
	b := newTestBroker()

	sub1 := b.Subscribe(1)
	sub2 := b.Subscribe(2)

	b.Close()

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case _, open := <-sub.C:
			require.False(t, open)
		case <-time.After(time.Second):
			t.Fatal("channel never closed on broker shutdown")
		}
	}
	assert.Equal(t, 0, b.Len())
}
