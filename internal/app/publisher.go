package app

import "trivia-session-service/internal/domain"

// MultiPublisher forwards every event to each underlying publisher in order,
// e.g. the in-process bus plus a Redis mirror.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(topic string, event domain.Event) {
	for _, p := range m {
		p.Publish(topic, event)
	}
}

func (m MultiPublisher) PublishToUser(userID string, event domain.Event) {
	for _, p := range m {
		p.PublishToUser(userID, event)
	}
}
