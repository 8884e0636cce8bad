package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/LingByte/TutorConnect/pkg/config"
	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/LingByte/TutorConnect/pkg/lifecycle"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher fans lifecycle events out on a redis pub/sub channel so
// other services (booking, notifications) can follow room activity.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(cfg config.RedisConfig) *RedisPublisher {
	channel := cfg.Channel
	if channel == "" {
		channel = constants.DefaultRedisChannel
	}
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		}),
		channel: channel,
	}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Channel() string { return p.channel }

func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", p.client.Options().Addr, err)
	}
	return nil
}

// Handle implements lifecycle.Sink.
func (p *RedisPublisher) Handle(ctx context.Context, ev lifecycle.Event) error {
	payload, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// EncodeEvent is the JSON payload published for ev.
func EncodeEvent(ev lifecycle.Event) ([]byte, error) {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return data, nil
}
