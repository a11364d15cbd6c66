package redis

import (
	"context"
	"encoding/json"

	"github.com/Kareem-3del/auction-platform-sub003/internal/domain"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type RedisEventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client: client,
		log:    log,
	}
}

// Subscribe blocks until ctx is cancelled, handing every decoded envelope to
// handler. A bad payload is logged and skipped, never fatal to the loop.
func (r *RedisEventSubscriber) Subscribe(ctx context.Context, handler domain.EnvelopeHandler) error {
	pubsub := r.client.Subscribe(ctx, eventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	r.log.Info("Subscribed to realtime events", "channel", eventsChannel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var env domain.RelayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Error("Failed to decode relay envelope", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(&env); err != nil {
				r.log.Error("Failed to handle relay envelope", "kind", env.Kind,
					"product_id", env.ProductID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}
