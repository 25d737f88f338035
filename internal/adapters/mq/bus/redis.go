package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/footprint/pkg/bus"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/metrics"
)

const redisDialTimeout = 5 * time.Second

// RedisConfig configures the redis bus.
type RedisConfig struct {
	Addr     string
	Password string
	Channel  string
}

// RedisBus publishes events to a redis channel. Every instance, the
// publisher included, receives them through its forwarder and fans them out
// to Subscribe handlers. SubscribeOwn handlers see an event once, on the
// instance that published it.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	hub     *bus.Hub[Event]
	own     *bus.Hub[Event]
	log     logger.Logger
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus connects to redis and verifies the connection.
func NewRedisBus(ctx context.Context, cfg RedisConfig, log logger.Logger) (*RedisBus, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis bus: missing address")
	}
	if cfg.Channel == "" {
		cfg.Channel = "footprint.journeys"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DialTimeout: redisDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		rdb:     rdb,
		channel: cfg.Channel,
		hub:     newHub(log),
		own:     newHub(log),
		log:     log,
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	b.own.Publish(ctx, e)
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		metrics.RecordBusPublishError()
		return fmt.Errorf("redis publish: %w", err)
	}
	metrics.RecordBusPublish(string(e.Kind))
	return nil
}

func (b *RedisBus) Subscribe(h Handler) func() {
	return b.hub.Subscribe(h)
}

func (b *RedisBus) SubscribeOwn(h Handler) func() {
	return b.own.Subscribe(h)
}

// StartForwarder subscribes to the channel and delivers decoded events to
// local subscribers until ctx is done.
func (b *RedisBus) StartForwarder(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
					b.log.Warn(ctx, "bad journey bus payload", logger.Error(err))
					continue
				}
				b.hub.Publish(ctx, e)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
