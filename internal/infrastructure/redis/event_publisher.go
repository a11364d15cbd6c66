package redis

import (
	"context"
	"encoding/json"

	"github.com/Kareem-3del/auction-platform-sub003/internal/domain"

	"github.com/go-redis/redis/v8"
)

const eventsChannel = "realtime_events"

type RedisEventPublisher struct {
	client *redis.Client
}

func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

// Publish sends the envelope to every subscribed instance, including the
// origin (the subscriber filters on Instance).
func (r *RedisEventPublisher) Publish(ctx context.Context, env *domain.RelayEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, eventsChannel, data).Err()
}
