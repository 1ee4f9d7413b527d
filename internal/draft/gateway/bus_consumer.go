package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"awards-draft-backend/internal/draft/publish"
)

// BusConsumer bridges the in-process event bus to the connection manager.
// It holds one bus subscription per draft that has at least one WebSocket
// client, opened and closed by the manager's pool lifecycle hooks.
type BusConsumer struct {
	bus     *publish.Bus
	manager *ConnectionManager

	mu   sync.Mutex
	subs map[uuid.UUID]*busPump
	ctx  context.Context
}

type busPump struct {
	sub    *publish.Subscription
	cancel context.CancelFunc
}

// NewBusConsumer wires the consumer into the manager's lifecycle hooks.
func NewBusConsumer(bus *publish.Bus, manager *ConnectionManager) *BusConsumer {
	bc := &BusConsumer{
		bus:     bus,
		manager: manager,
		subs:    make(map[uuid.UUID]*busPump),
		ctx:     context.Background(),
	}
	manager.OnDraftActive = bc.subscribe
	manager.OnDraftIdle = bc.unsubscribe
	return bc
}

// Start pins the consumer's lifetime to ctx; existing and future pumps stop
// when it is cancelled.
func (bc *BusConsumer) Start(ctx context.Context) {
	bc.mu.Lock()
	bc.ctx = ctx
	bc.mu.Unlock()

	<-ctx.Done()
	bc.mu.Lock()
	for draftID, pump := range bc.subs {
		pump.cancel()
		pump.sub.Close()
		delete(bc.subs, draftID)
	}
	bc.mu.Unlock()
}

func (bc *BusConsumer) subscribe(draftID uuid.UUID) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if _, exists := bc.subs[draftID]; exists {
		return
	}

	sub := bc.bus.Subscribe(draftID)
	ctx, cancel := context.WithCancel(bc.ctx)
	bc.subs[draftID] = &busPump{sub: sub, cancel: cancel}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-sub.C:
				if !ok {
					return
				}
				bc.manager.Broadcast(event)
			}
		}
	}()

	log.Debug().Str("draft_id", draftID.String()).Msg("gateway subscribed to draft events")
}

func (bc *BusConsumer) unsubscribe(draftID uuid.UUID) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	pump, exists := bc.subs[draftID]
	if !exists {
		return
	}
	delete(bc.subs, draftID)
	pump.cancel()
	pump.sub.Close()

	log.Debug().Str("draft_id", draftID.String()).Msg("gateway unsubscribed from draft events")
}
