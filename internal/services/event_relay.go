package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Kareem-3del/auction-platform-sub003/internal/domain"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"
)

var ErrMissingFields = errors.New("action and data are required")

// EventRelay is the broadcast path between the trusted transactional system
// and the viewers. It delivers locally, then republishes through Redis so
// every other instance fans the same event out to its own connections.
type EventRelay struct {
	broadcaster domain.ProductBroadcaster
	notifier    domain.UserNotifier
	publisher   domain.EventPublisher
	instanceID  string
	log         logger.Logger
}

func NewEventRelay(broadcaster domain.ProductBroadcaster, notifier domain.UserNotifier,
	publisher domain.EventPublisher, instanceID string, log logger.Logger) *EventRelay {
	return &EventRelay{
		broadcaster: broadcaster,
		notifier:    notifier,
		publisher:   publisher,
		instanceID:  instanceID,
		log:         log,
	}
}

// SubmitEvent relays one committed event to the room named by data.productId.
// The payload is forwarded as-is, with the action discriminator stamped in as
// "type". Zero recipients is success, not failure.
func (r *EventRelay) SubmitEvent(ctx context.Context, action string, data json.RawMessage) error {
	if action == "" || len(data) == 0 {
		return ErrMissingFields
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return ErrMissingFields
	}
	fields["type"] = action

	productID, _ := fields["productId"].(string)

	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	if err := r.broadcaster.BroadcastToProduct(productID, payload); err != nil {
		return err
	}

	r.log.Info("Event relayed", "action", action, "product_id", productID)

	return r.republish(ctx, &domain.RelayEnvelope{
		Instance:  r.instanceID,
		Kind:      domain.RelayBroadcast,
		ProductID: productID,
		Payload:   payload,
	})
}

// NotifyUser delivers a direct notification to one user's open connections.
func (r *EventRelay) NotifyUser(ctx context.Context, userID string, notification json.RawMessage) error {
	if userID == "" || len(notification) == 0 {
		return ErrMissingFields
	}

	payload, err := json.Marshal(map[string]interface{}{
		"type":         "notification",
		"notification": notification,
	})
	if err != nil {
		return err
	}

	if err := r.notifier.NotifyUser(userID, payload); err != nil {
		return err
	}

	return r.republish(ctx, &domain.RelayEnvelope{
		Instance: r.instanceID,
		Kind:     domain.RelayNotify,
		UserID:   userID,
		Payload:  payload,
	})
}

// HandleEnvelope replays events published by other instances into the local
// registry. Envelopes from this instance were already delivered locally.
func (r *EventRelay) HandleEnvelope(env *domain.RelayEnvelope) error {
	if env.Instance == r.instanceID {
		return nil
	}

	switch env.Kind {
	case domain.RelayBroadcast:
		return r.broadcaster.BroadcastToProduct(env.ProductID, env.Payload)
	case domain.RelayNotify:
		return r.notifier.NotifyUser(env.UserID, env.Payload)
	default:
		return errors.New("unknown relay kind: " + string(env.Kind))
	}
}

func (r *EventRelay) republish(ctx context.Context, env *domain.RelayEnvelope) error {
	if r.publisher == nil {
		return nil
	}
	if err := r.publisher.Publish(ctx, env); err != nil {
		// Local delivery already happened; a publish failure only affects
		// viewers on other instances.
		r.log.Error("Failed to republish envelope", "kind", env.Kind, "error", err)
	}
	return nil
}
