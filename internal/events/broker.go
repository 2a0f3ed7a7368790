package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event names published on produce request streams.
const (
	OrderAddedToRequest = "order-added-to-request"
	OrderAccepted       = "order-accepted"
	SupplyConfirmed     = "supply-confirmed"
	PaymentConfirmed    = "payment-confirmed"
	OrderCancelled      = "order-cancelled"
)

// Event is one named message pushed to subscribers of a produce request.
type Event struct {
	Name    string
	Payload string
}

// Subscription is the handle a streaming handler holds while the client is
// connected. Events arrive on C; the channel is closed when the subscription
// is torn down, whether by the client, a failed push, or a replacement
// subscriber.
type Subscription struct {
	RequestID int64

	C <-chan Event

	broker *Broker
	ch     chan Event
	once   sync.Once
}

// Close deregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.broker.unsubscribe(s)
}

// Broker is the subscription registry: one channel per produce request id,
// last subscriber wins. It is an injected dependency with its lifecycle tied
// to the server process, not a package singleton.
type Broker struct {
	mu     sync.Mutex
	subs   map[int64]*Subscription
	buffer int
	logger *zap.SugaredLogger

	// Heartbeat and IdleTimeout are consumed by the streaming handler; the
	// broker itself only stores them so the policy lives in one place.
	Heartbeat   time.Duration
	IdleTimeout time.Duration
}

func NewBroker(logger *zap.SugaredLogger, heartbeat, idleTimeout time.Duration) *Broker {
	return &Broker{
		subs:        make(map[int64]*Subscription),
		buffer:      8,
		logger:      logger,
		Heartbeat:   heartbeat,
		IdleTimeout: idleTimeout,
	}
}

// Subscribe registers a channel for the request id. An existing subscription
// for the same id is displaced and its channel closed, so the old handler
// returns instead of hanging on a stream that will never see another event.
func (b *Broker) Subscribe(requestID int64) *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{
		RequestID: requestID,
		C:         ch,
		ch:        ch,
	}
	sub.broker = b

	b.mu.Lock()
	old := b.subs[requestID]
	b.subs[requestID] = sub
	if old != nil {
		old.once.Do(func() { close(old.ch) })
	}
	b.mu.Unlock()

	if old != nil {
		b.logger.Infow("subscription replaced", "request_id", requestID)
	}
	return sub
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if b.subs[sub.RequestID] == sub {
		delete(b.subs, sub.RequestID)
	}
	sub.once.Do(func() { close(sub.ch) })
	b.mu.Unlock()
}

// Publish pushes a named event to the subscriber of the request id, if any.
// A full buffer means the client has stopped draining; the subscription is
// torn down rather than blocking the workflow. The send happens under the
// mutex, same as every close of the channel: a buffered send never blocks, and
// holding the lock keeps a concurrent teardown from closing the channel
// between the lookup and the send.
func (b *Broker) Publish(requestID int64, name, payload string) {
	b.mu.Lock()
	sub := b.subs[requestID]
	if sub == nil {
		b.mu.Unlock()
		return
	}

	select {
	case sub.ch <- Event{Name: name, Payload: payload}:
		b.mu.Unlock()
	default:
		delete(b.subs, requestID)
		sub.once.Do(func() { close(sub.ch) })
		b.mu.Unlock()
		b.logger.Warnw("subscriber not draining, dropping channel", "request_id", requestID, "event", name)
	}
}

// Close drains the registry at shutdown, closing every channel.
func (b *Broker) Close() {
	b.mu.Lock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
	b.mu.Unlock()
}

// Len reports the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
