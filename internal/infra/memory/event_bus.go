package memory

import (
	"sync"

	"trivia-session-service/internal/domain"
)

// EventBus is the in-process notification publisher: per-topic subscriber
// channels with best-effort, at-least-once fan-out. Publish order per topic
// matches the order events were handed in.
type EventBus struct {
	mu     sync.RWMutex
	topics map[string]map[chan domain.Event]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{topics: make(map[string]map[chan domain.Event]struct{})}
}

// Publish fans an event out to every subscriber of the topic. Slow
// subscribers lose their oldest undelivered event rather than blocking the
// publisher.
func (b *EventBus) Publish(topic string, event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.topics[topic] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// PublishToUser delivers a direct message to a single user's topic.
func (b *EventBus) PublishToUser(userID string, event domain.Event) {
	b.Publish(domain.UserTopic(userID), event)
}

// Subscribe returns a channel receiving every event published to the topic.
// The caller must invoke the returned cancel function to avoid leaks.
func (b *EventBus) Subscribe(topic string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	b.mu.Lock()
	subscribers, ok := b.topics[topic]
	if !ok {
		subscribers = make(map[chan domain.Event]struct{})
		b.topics[topic] = subscribers
	}
	subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subscribers, ok := b.topics[topic]; ok {
			if _, ok := subscribers[ch]; ok {
				delete(subscribers, ch)
				close(ch)
			}
			if len(subscribers) == 0 {
				delete(b.topics, topic)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
