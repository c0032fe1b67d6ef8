package redis

import (
	"context"
	"encoding/json"
	"log"

	"trivia-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Publisher mirrors session events onto Redis pub/sub channels so other
// processes (or a cross-instance fan-out tier) can observe them. Delivery is
// best effort; publish failures are logged and dropped.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(topic string, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("redis publish marshal %s: %v", event.Type, err)
		return
	}
	if err := p.client.Publish(context.Background(), topic, payload).Err(); err != nil {
		log.Printf("redis publish %s to %s: %v", event.Type, topic, err)
	}
}

func (p *Publisher) PublishToUser(userID string, event domain.Event) {
	p.Publish(domain.UserTopic(userID), event)
}
