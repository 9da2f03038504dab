// Package hub implements the per-holder event channel registry. Each holder id
// addresses one logical channel; any number of subscribers (one per client
// connection) may attach to it and each receives every event published to the
// holder in publish order.
package hub

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

// defaultBuffer is the per-subscription event buffer. A subscriber that falls
// this far behind starts missing events rather than blocking publishers.
const defaultBuffer = 64

// Hub is the multiplexed publish/subscribe address space keyed by holder id.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64]map[*Subscription]struct{}
	logger      *zap.Logger
	buffer      int
}

// New creates an empty hub.
func New(logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[int64]map[*Subscription]struct{}),
		logger:      logger,
		buffer:      defaultBuffer,
	}
}

// Subscription is a scoped handle on one holder's channel. Close detaches it;
// after Close returns no further events are delivered and C is closed.
type Subscription struct {
	hub      *Hub
	holderID int64
	ch       chan models.Event
	once     sync.Once
}

// C returns the subscription's event stream. It is closed by Close.
func (s *Subscription) C() <-chan models.Event {
	return s.ch
}

// HolderID returns the holder this subscription is attached to.
func (s *Subscription) HolderID() int64 {
	return s.holderID
}

// Close detaches the subscription from the hub and closes its channel.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()

		if subs, ok := s.hub.subscribers[s.holderID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.hub.subscribers, s.holderID)
			}
		}
		// Publishers hold the read lock while sending, so nothing can be
		// mid-send on this channel once the write lock is held.
		close(s.ch)
	})
}

// Subscribe attaches a new subscription to the holder's channel.
func (h *Hub) Subscribe(holderID int64) *Subscription {
	sub := &Subscription{
		hub:      h,
		holderID: holderID,
		ch:       make(chan models.Event, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribers[holderID] == nil {
		h.subscribers[holderID] = make(map[*Subscription]struct{})
	}
	h.subscribers[holderID][sub] = struct{}{}
	return sub
}

// Publish delivers an event to every subscriber currently attached to the
// holder's channel. Delivery is best-effort: a subscriber whose buffer is full
// misses the event, and publishing to a holder with no subscribers is a no-op.
// Publish never blocks.
func (h *Hub) Publish(holderID int64, event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.subscribers[holderID]
	if !ok {
		return
	}

	for sub := range subs {
		select {
		case sub.ch <- event:
		default:
			h.logger.Debug("subscriber buffer full, dropping event",
				zap.Int64("holder_id", holderID),
				zap.String("event_type", string(event.Type())))
		}
	}
}

// SubscriberCount returns the number of subscriptions attached to a holder.
func (h *Hub) SubscriberCount(holderID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[holderID])
}
