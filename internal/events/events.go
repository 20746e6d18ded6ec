// Package events publishes fulfillment outcomes to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel outcomes are published on.
const DefaultChannel = "fulfillment:outcomes"

// Outcome statuses.
const (
	StatusFulfilled = "fulfilled"
	StatusFailed    = "failed"
	StatusVoided    = "voided"
)

// Outcome describes what happened to one order.
type Outcome struct {
	OrderID        string    `json:"orderId"`
	Status         string    `json:"status"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	ShipmentID     string    `json:"shipmentId,omitempty"`
	Error          string    `json:"error,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher delivers outcomes. Publishing is best effort: callers log
// errors and carry on.
type Publisher interface {
	Publish(ctx context.Context, o Outcome) error
}

// Nop discards every outcome.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Outcome) error { return nil }

// RedisPublisher publishes outcomes as JSON on a Redis channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher creates a publisher on the given channel. An empty
// channel uses DefaultChannel.
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// OpenRedis connects to the server named by a redis:// URL.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// Publish encodes the outcome and publishes it.
func (p *RedisPublisher) Publish(ctx context.Context, o Outcome) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encoding outcome: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing outcome of order %s: %w", o.OrderID, err)
	}
	return nil
}

// Channel returns the channel outcomes are published on.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*RedisPublisher)(nil)
)
