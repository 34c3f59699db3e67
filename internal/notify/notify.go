// Package notify broadcasts BetPlaced updates to off-chain consumers.
// Delivery is best-effort: nothing here is a source of truth for pool totals.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"prediction-settlement/internal/models"

	"github.com/redis/go-redis/v9"
)

// Publisher sends a BetPlaced notification after the bet has committed.
type Publisher interface {
	PublishBetPlaced(ctx context.Context, event models.BetPlaced) error
}

// Subscriber streams BetPlaced notifications to live consumers.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan models.BetPlaced, error)
}

// NopPublisher drops every notification.
type NopPublisher struct{}

func (NopPublisher) PublishBetPlaced(context.Context, models.BetPlaced) error { return nil }

// RedisConfig holds connection parameters for the Redis publisher.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
	DialTimeout   time.Duration
}

// RedisPublisher publishes notifications on a Redis Pub/Sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher and pings Redis to verify the
// connection.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &RedisPublisher{rdb: rdb, channel: BetPlacedChannel(cfg.ChannelPrefix)}, nil
}

// BetPlacedChannel returns the channel name for BetPlaced notifications.
func BetPlacedChannel(prefix string) string {
	if prefix == "" {
		prefix = "settlement"
	}
	return prefix + ":bet_placed"
}

// Channel returns the channel this publisher writes to.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

func (p *RedisPublisher) PublishBetPlaced(ctx context.Context, event models.BetPlaced) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: encode bet_placed: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.channel, err)
	}
	return nil
}

// Subscribe streams decoded BetPlaced notifications until ctx is cancelled.
// Malformed payloads are skipped.
func (p *RedisPublisher) Subscribe(ctx context.Context) (<-chan models.BetPlaced, error) {
	pubsub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", p.channel, err)
	}

	out := make(chan models.BetPlaced, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event models.BetPlaced
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases the Redis connection pool.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

var (
	_ Publisher  = NopPublisher{}
	_ Publisher  = (*RedisPublisher)(nil)
	_ Subscriber = (*RedisPublisher)(nil)
)
