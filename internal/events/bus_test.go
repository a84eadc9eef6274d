package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToEverySubscriber(t *testing.T) {
	bus := NewProductionEventBus()
	a := bus.Subscribe("a")
	b := bus.Subscribe("b")

	bus.Publish(ProductionEvent{Type: EventScenesDecomposed, ProjectID: "proj-1"})

	for _, ch := range []<-chan ProductionEvent{a, b} {
		select {
		case evt := <-ch:
			assert.Equal(t, EventScenesDecomposed, evt.Type)
			assert.Equal(t, "proj-1", evt.ProjectID)
			assert.False(t, evt.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("expected event delivery")
		}
	}
}

func TestPublish_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewProductionEventBus()
	bus.Subscribe("slow")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Publish(ProductionEvent{Type: EventGenerationCreated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on full subscriber")
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	bus := NewProductionEventBus()
	ch := bus.Subscribe("a")
	bus.Unsubscribe("a")

	_, open := <-ch
	require.False(t, open)

	// Publishing after unsubscribe is a no-op.
	bus.Publish(ProductionEvent{Type: EventBatchCompleted})
}
