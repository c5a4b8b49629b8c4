// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/ventigrow/internal/platform/constants"
)

// EventBus fans session changes out over a Redis pub/sub channel.
//
// Redis delivers messages of one channel to a subscriber in publish order, so
// callbacks observe changes in the order the provider emitted them.
type EventBus struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewEventBus builds a bus for the events of one client.
func NewEventBus(client redis.UniversalClient, clientID string, logger *slog.Logger) *EventBus {
	return &EventBus{
		client:  client,
		channel: constants.RedisChannelEvents + clientID,
		logger:  logger,
	}
}

// Publish sends change to every subscriber.
func (bus *EventBus) Publish(context context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("identity_event_encode_failed: %w", err)
	}

	if err := bus.client.Publish(context, bus.channel, payload).Err(); err != nil {
		return fmt.Errorf("identity_event_publish_failed: %w", err)
	}
	return nil
}

/*
Subscribe invokes handler, one change at a time, for every published change.

The subscription is confirmed by Redis before Subscribe returns, so changes
published afterwards are never missed.

Returns:
  - func(): Unsubscribe; safe to call more than once
  - error: The subscription could not be established
*/
func (bus *EventBus) Subscribe(context context.Context, handler func(Change)) (func(), error) {
	pubsub := bus.client.Subscribe(context, bus.channel)

	if _, err := pubsub.Receive(context); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("identity_event_subscribe_failed: %w", err)
	}

	messages := pubsub.Channel()
	go func() {
		for message := range messages {
			var change Change
			if err := json.Unmarshal([]byte(message.Payload), &change); err != nil {
				bus.logger.Warn("identity_event_decode_failed", slog.Any("error", err))
				continue
			}
			handler(change)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { _ = pubsub.Close() })
	}, nil
}
