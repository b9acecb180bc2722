package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeIndex reserves join codes in Redis so every instance sees the same
// claimed set. Reservations carry the session TTL, so codes of abandoned
// lobbies free themselves.
type CodeIndex struct {
	client *redis.Client
}

func NewCodeIndex(client *redis.Client) *CodeIndex {
	return &CodeIndex{client: client}
}

func (c *CodeIndex) Reserve(ctx context.Context, code string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.key(code), "1", ttl).Result()
}

func (c *CodeIndex) Exists(ctx context.Context, code string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(code)).Result()
	return n > 0, err
}

func (c *CodeIndex) Release(ctx context.Context, code string) error {
	return c.client.Del(ctx, c.key(code)).Err()
}

func (c *CodeIndex) key(code string) string {
	return "challenge:code:" + code
}
