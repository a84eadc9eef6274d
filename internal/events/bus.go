package events

import (
	"sync"
	"time"

	"github.com/reelforge/reelforge/internal/logger"
)

// ProductionEvent is one observable fact about the pre-production pipeline:
// a scene decomposition, a generation landing, or an actor status transition.
type ProductionEvent struct {
	Type      string                 `json:"type"`
	ProjectID string                 `json:"project_id,omitempty"`
	EntityID  string                 `json:"entity_id,omitempty"`
	Status    string                 `json:"status,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Event types published by the core.
const (
	EventScenesDecomposed  = "scenes_decomposed"
	EventShotsPlanned      = "shots_planned"
	EventGenerationCreated = "generation_created"
	EventBatchCompleted    = "batch_completed"
	EventActorTransition   = "actor_transition"
)

// ProductionEventBus fans production events out to named subscribers. Slow
// subscribers drop events rather than blocking publishers.
type ProductionEventBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan ProductionEvent
}

// NewProductionEventBus returns an empty bus.
func NewProductionEventBus() *ProductionEventBus {
	return &ProductionEventBus{
		subscribers: make(map[string]chan ProductionEvent),
	}
}

// Subscribe registers a named subscriber and returns its event channel. A
// second Subscribe with the same name replaces the first.
func (b *ProductionEventBus) Subscribe(name string) <-chan ProductionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subscribers[name]; ok {
		close(old)
	}
	ch := make(chan ProductionEvent, 64)
	b.subscribers[name] = ch
	return ch
}

// Unsubscribe removes a named subscriber and closes its channel.
func (b *ProductionEventBus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[name]; ok {
		close(ch)
		delete(b.subscribers, name)
	}
}

// Publish delivers an event to every subscriber without blocking. Events to a
// full subscriber channel are dropped.
func (b *ProductionEventBus) Publish(event ProductionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for name, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			logger.Logger.Warn().Str("subscriber", name).Str("type", event.Type).
				Msg("dropping production event for slow subscriber")
		}
	}
}
