// Package publish fans versioned draft events out to subscribers: an
// in-process bus for everything in this binary, and a NATS JetStream
// publisher for other processes. Delivery is best effort on every path;
// ordering per draft comes from the engine serializing Publish calls, and
// subscribers recover losses through snapshot resync.
package publish

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"awards-draft-backend/internal/draft/events"
)

const subscriptionBuffer = 256

// Bus is the in-process event channel, one logical topic per draft.
type Bus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[*Subscription]bool
}

// Subscription receives one draft's events in publish order on C. The
// channel stays open until Close; a slow subscriber is never closed, it
// just misses the events that overflow its buffer.
type Subscription struct {
	C chan events.DraftEvent

	bus     *Bus
	draftID uuid.UUID
	once    sync.Once
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uuid.UUID]map[*Subscription]bool)}
}

// Subscribe registers a viewer on the draft's topic.
func (b *Bus) Subscribe(draftID uuid.UUID) *Subscription {
	sub := &Subscription{
		C:       make(chan events.DraftEvent, subscriptionBuffer),
		bus:     b,
		draftID: draftID,
	}
	b.mu.Lock()
	if b.subs[draftID] == nil {
		b.subs[draftID] = make(map[*Subscription]bool)
	}
	b.subs[draftID][sub] = true
	b.mu.Unlock()
	return sub
}

// Close unsubscribes. The channel is closed under the bus lock so no
// publish can race the close.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if subs, ok := s.bus.subs[s.draftID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.bus.subs, s.draftID)
			}
		}
		close(s.C)
		s.bus.mu.Unlock()
	})
}

// Publish delivers the event to every subscriber of its draft. A subscriber
// whose buffer is full misses the event and will detect the version gap.
func (b *Bus) Publish(ctx context.Context, event events.DraftEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[event.DraftID] {
		select {
		case sub.C <- event:
		default:
			log.Warn().
				Str("draft_id", event.DraftID.String()).
				Int64("version", event.Version).
				Msg("subscriber buffer full, dropping event")
		}
	}
	return nil
}

// Multi forwards each event to several publishers, e.g. the in-process bus
// plus JetStream. The first error is returned after all publishers ran.
type Multi []interface {
	Publish(ctx context.Context, event events.DraftEvent) error
}

func (m Multi) Publish(ctx context.Context, event events.DraftEvent) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
