package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_ControllerWideDelivery(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish("compute.created", map[string]interface{}{"compute_id": "abc"})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, "compute.created", ev.Action)
		assert.Equal(t, "abc", ev.Payload["compute_id"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_ProjectScopedDeliveryIsolated(t *testing.T) {
	bus := NewBus()
	subA := bus.SubscribeProject("proj-a")
	defer subA.Close()
	subB := bus.SubscribeProject("proj-b")
	defer subB.Close()

	bus.PublishProject("proj-a", "project.updated", nil)

	select {
	case ev := <-subA.Events():
		assert.Equal(t, "project.updated", ev.Action)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for project-a event")
	}

	select {
	case <-subB.Events():
		t.Fatal("project-b subscriber should not receive project-a events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_NeverBlocksOnOverflow(t *testing.T) {
	bus := NewBusWithQueueSize(2)
	sub := bus.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish("tick", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked under overflow")
	}

	// Drain whatever is queued; the last entry should be a dropped marker
	// since we published far more events than the queue could hold.
	var last *struct{ action string }
	for {
		select {
		case ev := <-sub.Events():
			a := ev.Action
			last = &struct{ action string }{a}
		default:
			goto drained
		}
	}
drained:
	require.NotNil(t, last)
	assert.Equal(t, "notification.dropped", last.action)
}

func TestBus_UnsubscribeRemovesFromProjectMap(t *testing.T) {
	bus := NewBus()
	sub := bus.SubscribeProject("proj-x")
	sub.Close()

	bus.mu.RLock()
	_, exists := bus.projectSub["proj-x"]
	bus.mu.RUnlock()
	assert.False(t, exists, "project subscriber map should be cleaned up once empty")
}
