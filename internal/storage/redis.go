package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisKeyPrefix = "amphy:kv:"
	redisChannel   = "amphy:changes"
)

// RedisOptions configures the sync area.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisBackend is the sync area: values live in Redis and every write is
// published so other devices can pick it up. Each backend tags its writes
// with a random origin and ignores its own messages.
type RedisBackend struct {
	client *redis.Client
	origin string
	logger zerolog.Logger
}

type changeMessage struct {
	Origin string          `json:"origin"`
	Key    string          `json:"key"`
	Value  json.RawMessage `json:"value"`
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, opts RedisOptions, logger zerolog.Logger) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisBackend{
		client: client,
		origin: uuid.NewString(),
		logger: logger,
	}, nil
}

func (b *RedisBackend) Load(ctx context.Context, key string) (json.RawMessage, bool, error) {
	data, err := b.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(data), true, nil
}

func (b *RedisBackend) Save(ctx context.Context, key string, value json.RawMessage) error {
	msg, err := json.Marshal(changeMessage{Origin: b.origin, Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKeyPrefix+key, []byte(value), 0)
		pipe.Publish(ctx, redisChannel, msg)
		return nil
	})
	return err
}

// Watch forwards changes published by other backends until ctx is done.
func (b *RedisBackend) Watch(ctx context.Context, fn func(key string, value json.RawMessage)) error {
	sub := b.client.Subscribe(ctx, redisChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribing to %s: %w", redisChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handleMessage(msg.Payload, fn)
		}
	}
}

func (b *RedisBackend) handleMessage(payload string, fn func(key string, value json.RawMessage)) {
	var msg changeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.logger.Warn().Err(err).Msg("ignoring malformed change message")
		return
	}
	if msg.Origin == b.origin || msg.Key == "" {
		return
	}
	fn(msg.Key, msg.Value)
}

func (b *RedisBackend) Close() error { return b.client.Close() }
