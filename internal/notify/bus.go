// Package notify implements the controller-wide notification bus (spec
// §4.B): publish/subscribe of structured events, fanned out per-project
// as well as controller-wide, with a bounded per-subscriber queue that
// never blocks the publisher.
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/netsim/controller/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultQueueSize is the default bound on a subscriber's pending-event
// queue before the oldest event is dropped in favor of a dropped marker.
const DefaultQueueSize = 1024

// Subscription is a live handle to a subscriber's event queue.
type Subscription struct {
	id      uint64
	queue   chan models.Event
	project string // empty for controller-wide subscriptions
	bus     *Bus
}

// Events returns the channel to range over for delivered events.
func (s *Subscription) Events() <-chan models.Event {
	return s.queue
}

// Close unsubscribes and releases the queue. Idempotent.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Bus is the controller-wide publish/subscribe hub. It is safe for
// concurrent use; Publish/PublishProject never block regardless of how
// slow (or absent) subscribers are.
type Bus struct {
	mu            sync.RWMutex
	controllerSub map[uint64]*subscriberState
	projectSub    map[string]map[uint64]*subscriberState
	nextID        uint64
	queueSize     int
}

type subscriberState struct {
	queue   chan models.Event
	mu      sync.Mutex
	dropped int64
}

// NewBus creates a notification bus with the default queue bound.
func NewBus() *Bus {
	return NewBusWithQueueSize(DefaultQueueSize)
}

// NewBusWithQueueSize creates a notification bus with an explicit
// per-subscriber queue bound (mainly for tests that want to exercise the
// drop-oldest path without enqueuing thousands of events).
func NewBusWithQueueSize(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		controllerSub: make(map[uint64]*subscriberState),
		projectSub:    make(map[string]map[uint64]*subscriberState),
		queueSize:     queueSize,
	}
}

// Subscribe registers a controller-wide subscriber.
func (b *Bus) Subscribe() *Subscription {
	id := atomic.AddUint64(&b.nextID, 1)
	st := &subscriberState{queue: make(chan models.Event, b.queueSize)}

	b.mu.Lock()
	b.controllerSub[id] = st
	b.mu.Unlock()

	return &Subscription{id: id, queue: st.queue, bus: b}
}

// SubscribeProject registers a subscriber scoped to one project's events.
// Project subscribers do not receive controller-wide events and vice
// versa — callers that want both must hold two Subscriptions.
func (b *Bus) SubscribeProject(projectID string) *Subscription {
	id := atomic.AddUint64(&b.nextID, 1)
	st := &subscriberState{queue: make(chan models.Event, b.queueSize)}

	b.mu.Lock()
	if b.projectSub[projectID] == nil {
		b.projectSub[projectID] = make(map[uint64]*subscriberState)
	}
	b.projectSub[projectID][id] = st
	b.mu.Unlock()

	return &Subscription{id: id, queue: st.queue, project: projectID, bus: b}
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.project == "" {
		delete(b.controllerSub, s.id)
		return
	}
	if m, ok := b.projectSub[s.project]; ok {
		delete(m, s.id)
		if len(m) == 0 {
			delete(b.projectSub, s.project)
		}
	}
}

// Publish emits a controller-wide event. Never blocks.
func (b *Bus) Publish(action string, payload map[string]interface{}) {
	b.publish(b.controllerSubs(), newEvent(action, payload))
}

// PublishProject emits an event scoped to a single project. Never blocks.
func (b *Bus) PublishProject(projectID, action string, payload map[string]interface{}) {
	b.mu.RLock()
	subs := make([]*subscriberState, 0, len(b.projectSub[projectID]))
	for _, st := range b.projectSub[projectID] {
		subs = append(subs, st)
	}
	b.mu.RUnlock()
	b.publish(subs, newEvent(action, payload))
}

func (b *Bus) controllerSubs() []*subscriberState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]*subscriberState, 0, len(b.controllerSub))
	for _, st := range b.controllerSub {
		subs = append(subs, st)
	}
	return subs
}

func newEvent(action string, payload map[string]interface{}) models.Event {
	return models.Event{Action: action, Payload: payload, Timestamp: time.Now().UTC()}
}

func (b *Bus) publish(subs []*subscriberState, event models.Event) {
	for _, st := range subs {
		st.enqueue(event)
	}
}

// enqueue delivers one event to the subscriber's queue without blocking.
// On overflow, the oldest queued event is dropped and replaced with a
// "notification.dropped" marker — the triggering event itself is not
// delivered in that case, matching the bounded-queue guarantee that the
// bus never blocks a publisher waiting on a stuck subscriber.
func (st *subscriberState) enqueue(event models.Event) {
	st.mu.Lock()
	defer st.mu.Unlock()

	select {
	case st.queue <- event:
		return
	default:
	}

	// Queue full: drop the oldest, insert a marker in its place.
	select {
	case <-st.queue:
	default:
	}
	st.dropped++
	marker := models.Event{
		Action:    "notification.dropped",
		Payload:   map[string]interface{}{"dropped_total": st.dropped},
		Timestamp: time.Now().UTC(),
	}
	select {
	case st.queue <- marker:
	default:
		log.Warn().Msg("notify: subscriber queue contended, marker dropped too")
	}
}
