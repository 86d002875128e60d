package simplefeed

import (
	"context"
	"fmt"
	"sync"
)

// OverflowPolicy selects what Publish does when a subscriber's queue is full.
type OverflowPolicy int

const (
	// DropOldest discards the oldest queued event to make room for the new
	// one. This is the default: stale post notifications have low value and
	// a slow subscriber must never stall a mutation.
	DropOldest OverflowPolicy = iota

	// DropNewest discards the event being published for that subscriber.
	DropNewest

	// BlockPublisher blocks the publisher until the subscriber drains its
	// queue or cancels.
	BlockPublisher
)

// DefaultQueueSize is the per-subscriber queue bound used when no option
// overrides it.
const DefaultQueueSize = 16

// Bus is an in-process publish/subscribe hub with the three fixed post
// topics. Events are transient: delivery is live-only, with no replay for
// subscribers that register after a publish.
//
// A Bus is constructed explicitly (typically once at process start) and
// passed to the Service; there is no package-level instance.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType]map[*Subscription]struct{}
	order  map[EventType]*sync.Mutex
	closed bool

	queueSize int
	policy    OverflowPolicy
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithQueueSize sets the per-subscriber queue bound.
func WithQueueSize(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithOverflowPolicy sets the behavior when a subscriber's queue is full.
func WithOverflowPolicy(p OverflowPolicy) BusOption {
	return func(b *Bus) {
		b.policy = p
	}
}

// NewBus creates a bus with all three topics registered.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:      make(map[EventType]map[*Subscription]struct{}),
		order:     make(map[EventType]*sync.Mutex),
		queueSize: DefaultQueueSize,
		policy:    DropOldest,
	}
	for _, topic := range []EventType{EventPostCreated, EventPostUpdated, EventPostDeleted} {
		b.subs[topic] = make(map[*Subscription]struct{})
		b.order[topic] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers ev to every subscriber currently registered on its topic
// and returns without waiting for subscriber processing. Delivery failures
// for individual subscribers (full queue under a drop policy) never surface
// to the publisher. Events with an unknown topic are discarded.
func (b *Bus) Publish(ev Event) {
	if !ev.Type.Valid() {
		return
	}

	// Serialize delivery per topic so every subscriber observes events of
	// one topic in publish order even with concurrent publishers.
	order := b.order[ev.Type]
	order.Lock()
	defer order.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[ev.Type] {
		sub.deliver(ev, b.policy)
	}
}

// Subscribe registers a new subscriber on topic. The returned subscription
// receives, in publish order, every event published to the topic after this
// call, until it is cancelled. Cancellation happens either explicitly via
// Cancel or when ctx is done.
func (b *Bus) Subscribe(ctx context.Context, topic EventType) (*Subscription, error) {
	if !topic.Valid() {
		return nil, fmt.Errorf("unknown topic %q", topic)
	}

	sub := &Subscription{
		bus:   b,
		topic: topic,
		ch:    make(chan Event, b.queueSize),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Cancel()
			case <-sub.done:
			}
		}()
	}

	return sub, nil
}

// Close cancels every subscription and rejects further subscribes. Pending
// publishes finish first; Publish on a closed bus is a no-op with no
// subscribers left.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*Subscription
	for _, set := range b.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.Cancel()
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[sub.topic], sub)
}

// Subscription is one live, cancellable registration on a topic. Events()
// yields events in publish order; the channel is closed once the
// subscription is cancelled and no further deliveries will be attempted.
type Subscription struct {
	bus   *Bus
	topic EventType
	ch    chan Event
	done  chan struct{}
	once  sync.Once
}

// Topic returns the topic this subscription is registered on.
func (s *Subscription) Topic() EventType { return s.topic }

// Events returns the subscriber's delivery channel.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Cancel removes the registration and closes the delivery channel. Safe to
// call multiple times and concurrently with Publish.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		// Unblock any publisher waiting on a full queue before taking the
		// registry write lock, otherwise BlockPublisher could deadlock.
		close(s.done)
		s.bus.remove(s)
		// No publisher can reach this subscription anymore: sends happen
		// under the registry read lock, and remove has excluded them.
		close(s.ch)
	})
}

// deliver enqueues ev for this subscriber. Called with the bus registry read
// lock held.
func (s *Subscription) deliver(ev Event, policy OverflowPolicy) {
	switch policy {
	case BlockPublisher:
		select {
		case s.ch <- ev:
		case <-s.done:
		}
	case DropNewest:
		select {
		case s.ch <- ev:
		default:
		}
	default: // DropOldest
		select {
		case s.ch <- ev:
		default:
			// Queue full: evict the oldest event, then retry once. The
			// consumer may race the eviction; either way the send below is
			// non-blocking.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- ev:
			default:
			}
		}
	}
}
