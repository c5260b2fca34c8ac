package redisinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// kv is the part of redis.Cmdable the mirror uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Mirror stores marker records as plain string keys under a common prefix.
type Mirror struct {
	client kv
	prefix string
}

func NewMirror(client kv, prefix string) *Mirror {
	return &Mirror{client: client, prefix: prefix}
}

func (m *Mirror) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := m.client.Get(ctx, m.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Set writes without expiry; markers live as long as the conversation does.
func (m *Mirror) Set(ctx context.Context, key, value string) error {
	if err := m.client.Set(ctx, m.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
