package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mizan/internal/shared/logger"
)

// EntitlementChangeSource identifies what triggered an entitlement change
type EntitlementChangeSource string

const (
	// EntitlementChangeWebhook indicates the billing provider pushed a change
	EntitlementChangeWebhook EntitlementChangeSource = "webhook"
	// EntitlementChangeRefresh indicates a client-requested refresh resolved a change
	EntitlementChangeRefresh EntitlementChangeSource = "refresh"
)

// EntitlementChangeEvent notifies other instances that a user's entitlements
// changed and their store should re-resolve
type EntitlementChangeEvent struct {
	UserID    string                  `json:"user_id"`
	Source    EntitlementChangeSource `json:"source"`
	Timestamp int64                   `json:"timestamp"`
}

// EntitlementEventHandler is a callback function for handling entitlement events
type EntitlementEventHandler func(ctx context.Context, event EntitlementChangeEvent)

// EntitlementEventPublisher defines the interface for publishing entitlement events
type EntitlementEventPublisher interface {
	PublishChange(ctx context.Context, userID string, source EntitlementChangeSource) error
}

// EntitlementEventSubscriber defines the interface for subscribing to entitlement events
type EntitlementEventSubscriber interface {
	Subscribe(ctx context.Context, handler EntitlementEventHandler) error
}

const entitlementChangeChannel = "mizan:entitlement:change"

// RedisEntitlementEventBus implements both EntitlementEventPublisher and
// EntitlementEventSubscriber using Redis Pub/Sub for cross-instance
// event distribution
type RedisEntitlementEventBus struct {
	client *redis.Client
	logger logger.Interface
}

// NewRedisEntitlementEventBus creates a new Redis-based entitlement event bus
func NewRedisEntitlementEventBus(client *redis.Client, logger logger.Interface) *RedisEntitlementEventBus {
	return &RedisEntitlementEventBus{
		client: client,
		logger: logger,
	}
}

// PublishChange publishes an entitlement change event for the given user
func (b *RedisEntitlementEventBus) PublishChange(ctx context.Context, userID string, source EntitlementChangeSource) error {
	event := EntitlementChangeEvent{
		UserID:    userID,
		Source:    source,
		Timestamp: time.Now().Unix(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, entitlementChangeChannel, data).Err(); err != nil {
		b.logger.Errorw("failed to publish entitlement change event",
			"user_id", event.UserID,
			"source", event.Source,
			"error", err,
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debugw("entitlement change event published",
		"user_id", event.UserID,
		"source", event.Source,
	)
	return nil
}

// Subscribe subscribes to entitlement change events and calls the handler for each event
func (b *RedisEntitlementEventBus) Subscribe(ctx context.Context, handler EntitlementEventHandler) error {
	pubsub := b.client.Subscribe(ctx, entitlementChangeChannel)
	defer pubsub.Close()

	// Wait for subscription confirmation
	_, err := pubsub.Receive(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	b.logger.Infow("subscribed to entitlement change events",
		"channel", entitlementChangeChannel,
	)

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			b.logger.Infow("entitlement event subscriber stopped",
				"reason", ctx.Err(),
			)
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				b.logger.Warnw("entitlement event channel closed")
				return nil
			}

			var event EntitlementChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warnw("failed to unmarshal entitlement event",
					"payload", msg.Payload,
					"error", err,
				)
				continue
			}

			// Handle event in background goroutine to avoid blocking the event loop
			go handler(context.Background(), event)
		}
	}
}
