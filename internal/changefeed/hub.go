package changefeed

import (
	"log/slog"
	"sync"
)

// Tables whose writes are published on the hub.
const (
	TableShopping     = "shopping_items"
	TableReminders    = "cleaning_reminders"
	TableAppointments = "doctor_appointments"
	TableContacts     = "contacts"
)

// Topic names the change stream of one table within one household.
func Topic(table, householdID string) string {
	return table + ":" + householdID
}

type subscriber struct {
	notify chan struct{}
}

// Hub fans change notifications out to subscribers of a topic. A notification
// carries no payload; subscribers re-read whatever they are watching.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers interest in topic. The returned channel receives at most
// one pending notification at a time, so bursts of writes coalesce. Call the
// returned func to unsubscribe; it closes the channel and is safe to call twice.
func (h *Hub) Subscribe(topic string) (<-chan struct{}, func()) {
	sub := &subscriber{notify: make(chan struct{}, 1)}

	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.notify, func() {
		once.Do(func() { h.unsubscribe(topic, sub) })
	}
}

func (h *Hub) unsubscribe(topic string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.notify)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// Publish wakes every subscriber of topic without blocking.
func (h *Hub) Publish(topic string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.topics[topic] {
		select {
		case sub.notify <- struct{}{}:
		default:
			// A notification is already pending for this subscriber.
		}
	}
	h.logger.Debug("change published", "topic", topic, "subscribers", len(h.topics[topic]))
}

// SubscriberCount returns the number of live subscriptions to topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
