package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RegistryHook marks session liveness in Redis. The authoritative state stays
// in process; the keys let other instances (and operators) see which sessions
// exist, and their TTL matches the registry's age-based expiry.
type RegistryHook struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRegistryHook(client *redis.Client, ttl time.Duration) *RegistryHook {
	return &RegistryHook{client: client, ttl: ttl}
}

func (h *RegistryHook) SessionCreated(id string) {
	// best-effort liveness marker
	_ = h.client.Set(context.Background(), h.key(id), "1", h.ttl).Err()
}

func (h *RegistryHook) SessionRemoved(id string) {
	_ = h.client.Del(context.Background(), h.key(id)).Err()
}

func (h *RegistryHook) key(id string) string {
	return "trivia:session:" + id
}
