// Package fanout distributes committed swap events to live subscribers.
// Delivery is best-effort and at-most-once: no replay, no persistence,
// no backpressure onto the commit path.
package fanout

import (
	"sync"

	"sonar/internal/domain"
)

// Publisher publishes committed swap events to a pair-keyed topic.
// Publish must never block and never fail the caller.
type Publisher interface {
	Publish(e *domain.SwapEvent)
}

// Subscription is a live feed of trades for one pair. Cancel at any time
// with Close; messages published before Subscribe are never delivered.
type Subscription struct {
	C <-chan domain.Trade

	hub  *Hub
	pair string
	ch   chan domain.Trade
	once sync.Once
}

// Close cancels the subscription and releases its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s.pair, s.ch)
	})
}

// Hub is the in-process fanout topic registry.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[chan domain.Trade]struct{}
	bufSize int

	// onDrop is invoked when a slow subscriber misses a trade. Optional.
	onDrop func(pair string)
	// onPublish is invoked for every delivered trade. Optional.
	onPublish func(pair string)
}

// NewHub creates a hub with the given per-subscriber buffer size.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		topics:  make(map[string]map[chan domain.Trade]struct{}),
		bufSize: bufSize,
	}
}

// Compile-time interface check.
var _ Publisher = (*Hub)(nil)

// OnDrop registers a callback for dropped deliveries. Must be set before
// the hub is shared.
func (h *Hub) OnDrop(fn func(pair string)) { h.onDrop = fn }

// OnPublish registers a callback for delivered trades. Must be set before
// the hub is shared.
func (h *Hub) OnPublish(fn func(pair string)) { h.onPublish = fn }

// Subscribe attaches a live subscriber to the pair's topic.
func (h *Hub) Subscribe(pair string) *Subscription {
	ch := make(chan domain.Trade, h.bufSize)

	h.mu.Lock()
	subs, ok := h.topics[pair]
	if !ok {
		subs = make(map[chan domain.Trade]struct{})
		h.topics[pair] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	return &Subscription{C: ch, hub: h, pair: pair, ch: ch}
}

func (h *Hub) unsubscribe(pair string, ch chan domain.Trade) {
	h.mu.Lock()
	if subs, ok := h.topics[pair]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.topics, pair)
		}
	}
	h.mu.Unlock()
	close(ch)
}

// Publish delivers the event to every current subscriber of its pair.
// Subscribers whose buffer is full miss the trade; the commit path is
// never blocked waiting on a reader.
func (h *Hub) Publish(e *domain.SwapEvent) {
	trade := domain.TradeFromEvent(e)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.topics[e.Pair] {
		select {
		case ch <- trade:
			if h.onPublish != nil {
				h.onPublish(e.Pair)
			}
		default:
			if h.onDrop != nil {
				h.onDrop(e.Pair)
			}
		}
	}
}

// Multi fans a publish out to several publishers (e.g. hub + broker).
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(e *domain.SwapEvent) {
	for _, p := range m {
		p.Publish(e)
	}
}
