// Package events implements a small typed pub/sub hub used to fan session
// and appearance state changes out to application code. Subscriptions carry
// their own unsubscribe handle, since listeners come and go with UI state
// rather than living for the process lifetime.
package events

import (
	"sync"
	"time"
)

// Topic identifies an event category. Packages that publish events define
// their own Topic constants in their own namespace (pkg/appearance does
// this for bake-pipeline events); the hub itself is topic-agnostic.
type Topic int

// Event is one published occurrence.
type Event struct {
	Topic     Topic
	Data      interface{}
	Timestamp time.Time
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine, in unspecified order; callers that need ordering
// or concurrency should dispatch to their own goroutine or channel inside
// the handler.
type Handler func(Event)

// Subscription is returned by Subscribe; calling Unsubscribe removes the
// handler. Safe to call more than once.
type Subscription struct {
	hub   *Hub
	topic Topic
	id    uint64
}

// Unsubscribe removes this handler from its hub. A no-op if already removed.
func (s *Subscription) Unsubscribe() {
	s.hub.unsubscribe(s.topic, s.id)
}

// Hub fans events out to subscribed handlers, keyed by Topic.
type Hub struct {
	mu      sync.RWMutex
	nextID  uint64
	byTopic map[Topic]map[uint64]Handler
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{byTopic: make(map[Topic]map[uint64]Handler)}
}

// Subscribe registers h for events published on topic.
func (h *Hub) Subscribe(topic Topic, handler Handler) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if h.byTopic[topic] == nil {
		h.byTopic[topic] = make(map[uint64]Handler)
	}
	h.byTopic[topic][id] = handler
	return &Subscription{hub: h, topic: topic, id: id}
}

func (h *Hub) unsubscribe(topic Topic, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.byTopic[topic], id)
}

// Publish delivers data to every handler subscribed to topic, stamping the
// event with the current time.
func (h *Hub) Publish(topic Topic, data interface{}) {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.byTopic[topic]))
	for _, hdl := range h.byTopic[topic] {
		handlers = append(handlers, hdl)
	}
	h.mu.RUnlock()

	ev := Event{Topic: topic, Data: data, Timestamp: time.Now()}
	for _, hdl := range handlers {
		hdl(ev)
	}
}

// SubscriberCount reports how many handlers are registered on topic, mainly
// for tests.
func (h *Hub) SubscriberCount(topic Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byTopic[topic])
}
