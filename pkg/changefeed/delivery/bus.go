package delivery

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
)

// Handler consumes batches delivered to a bus subscription.
type Handler func(ctx context.Context, b Batch) error

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// NonBlocking makes Deliver drop batches for subscribers whose buffer is
	// full instead of waiting.
	// Default: false (blocking)
	NonBlocking bool

	// DeduplicateTTL skips batches whose ID was seen within the TTL, so a
	// retried delivery is not handed to subscribers twice.
	// Default: 0 (disabled)
	DeduplicateTTL time.Duration

	// OnDrop is called when a batch is dropped (non-blocking mode).
	OnDrop func(b Batch, subscriberID string)

	// OnError is called when a handler returns an error.
	OnError func(b Batch, subscriberID string, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
}

// LocalBus is an in-process Sink that fans batches out to subscribers. Each
// subscriber only sees the events of the types it subscribed to, and is
// skipped when a batch holds none of them.
type LocalBus struct {
	config BusConfig

	mu            sync.RWMutex
	subscriptions map[string]*Subscription

	dedupeMu    sync.Mutex
	dedupeCache map[string]time.Time

	nextID  atomic.Int64
	closed  atomic.Bool
	closeCh chan struct{}
}

var _ Sink = (*LocalBus)(nil)

// NewBus creates a local bus.
func NewBus(config BusConfig) *LocalBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}

	bus := &LocalBus{
		config:        config,
		subscriptions: make(map[string]*Subscription),
		closeCh:       make(chan struct{}),
	}
	if config.DeduplicateTTL > 0 {
		bus.dedupeCache = make(map[string]time.Time)
		go bus.cleanupDedupe()
	}
	return bus
}

// Subscription is an active bus subscription.
type Subscription struct {
	id      string
	types   []resource.EventType
	handler Handler
	batches chan Batch
	paused  atomic.Bool
	done    chan struct{}
	once    sync.Once
	bus     *LocalBus
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Deliver implements Sink.
func (b *LocalBus) Deliver(ctx context.Context, batch Batch) error {
	if b.closed.Load() {
		return Permanent(ErrBusClosed)
	}
	if b.config.DeduplicateTTL > 0 && b.seen(batch.ID) {
		return nil
	}

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.paused.Load() {
			continue
		}
		filtered := batch.Filter(sub.types...)
		if filtered.Empty() {
			continue
		}

		if b.config.NonBlocking {
			select {
			case sub.batches <- filtered:
			default:
				if b.config.OnDrop != nil {
					b.config.OnDrop(filtered, sub.id)
				}
			}
			continue
		}

		select {
		case sub.batches <- filtered:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closeCh:
			return Permanent(ErrBusClosed)
		}
	}
	return nil
}

// Subscribe registers handler for batches carrying any of types. With no
// types every event is delivered. Returns nil once the bus is closed.
func (b *LocalBus) Subscribe(handler Handler, types ...resource.EventType) *Subscription {
	if b.closed.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		id:      strconv.FormatInt(b.nextID.Add(1), 10),
		types:   types,
		handler: handler,
		batches: make(chan Batch, b.config.BufferSize),
		done:    make(chan struct{}),
		bus:     b,
	}
	b.subscriptions[sub.id] = sub

	go sub.process()
	return sub
}

// Len returns the number of active subscriptions.
func (b *LocalBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Close shuts down the bus and all subscriptions.
func (b *LocalBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(b.closeCh)

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscriptions {
		sub.stop()
		delete(b.subscriptions, id)
	}
	return nil
}

func (s *Subscription) process() {
	for {
		select {
		case batch := <-s.batches:
			if s.paused.Load() {
				continue
			}
			if err := s.handler(context.Background(), batch); err != nil && s.bus.config.OnError != nil {
				s.bus.config.OnError(batch, s.id, err)
			}
		case <-s.done:
			return
		}
	}
}

// Unsubscribe removes the subscription.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subscriptions, s.id)
	s.bus.mu.Unlock()
	s.stop()
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// Pause temporarily stops delivery. Batches delivered while paused are lost.
func (s *Subscription) Pause() {
	s.paused.Store(true)
}

// Resume continues delivery after pause.
func (s *Subscription) Resume() {
	s.paused.Store(false)
}

// IsPaused returns true if the subscription is paused.
func (s *Subscription) IsPaused() bool {
	return s.paused.Load()
}

// seen records id and reports whether it was already recorded.
func (b *LocalBus) seen(id string) bool {
	b.dedupeMu.Lock()
	defer b.dedupeMu.Unlock()

	if _, exists := b.dedupeCache[id]; exists {
		return true
	}
	b.dedupeCache[id] = time.Now()
	return false
}

func (b *LocalBus) cleanupDedupe() {
	ticker := time.NewTicker(b.config.DeduplicateTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.dedupeMu.Lock()
			cutoff := time.Now().Add(-b.config.DeduplicateTTL)
			for id, ts := range b.dedupeCache {
				if ts.Before(cutoff) {
					delete(b.dedupeCache, id)
				}
			}
			b.dedupeMu.Unlock()
		case <-b.closeCh:
			return
		}
	}
}
