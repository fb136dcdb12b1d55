package services

import (
	"sync"

	"lingopulse/realtime-gateway/models"
	"lingopulse/realtime-gateway/utils"
)

// subscriberBuffer bounds how many undelivered events a slow subscriber
// may hold before further events are dropped.
const subscriberBuffer = 8

// StatusBroadcaster fans presence events out to topic subscribers.
// Delivery is fire-and-forget and at most once: a subscriber whose
// buffer is full misses the event. Per-session ONLINE-before-OFFLINE
// ordering is guaranteed by gateway call order, not by this type.
type StatusBroadcaster struct {
	mu     sync.RWMutex
	topics map[string]map[chan models.StatusEvent]struct{}
	logger *utils.Logger
}

func NewStatusBroadcaster(logger *utils.Logger) *StatusBroadcaster {
	return &StatusBroadcaster{
		topics: make(map[string]map[chan models.StatusEvent]struct{}),
		logger: logger,
	}
}

// Subscribe registers interest in a topic and returns the channel
// events arrive on. The caller must Unsubscribe with the same channel.
func (b *StatusBroadcaster) Subscribe(topic string) chan models.StatusEvent {
	ch := make(chan models.StatusEvent, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[chan models.StatusEvent]struct{})
		b.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes the channel from the topic and closes it.
func (b *StatusBroadcaster) Unsubscribe(topic string, ch chan models.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
	close(ch)
}

// Publish delivers the event to every subscriber of the user's status
// topic without blocking. No persistence, no replay.
func (b *StatusBroadcaster) Publish(event models.StatusEvent) {
	topic := models.StatusTopic(event.UserID)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.topics[topic] {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped status event for slow subscriber", "topic", topic)
		}
	}
}

// SubscriberCount reports how many channels are attached to a topic.
func (b *StatusBroadcaster) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
