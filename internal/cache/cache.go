package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCodeNotFound is returned when no live code exists for a key, either
// because none was issued or because the TTL ran out.
var ErrCodeNotFound = errors.New("verification code not found")

// Codes stores short-lived verification codes in redis. At most one live
// code exists per key; re-issuing overwrites it.
type Codes struct {
	client *redis.Client
}

func NewCodes(addr, password string, db int) *Codes {
	return &Codes{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewCodesFromClient is used by tests that provide their own client.
func NewCodesFromClient(client *redis.Client) *Codes {
	return &Codes{client: client}
}

// Set generates a 6-digit numeric code, stores it under key with the
// given TTL and returns it for out-of-band delivery.
func (c *Codes) Set(ctx context.Context, key string, ttl time.Duration) (string, error) {
	code := fmt.Sprintf("%06d", rand.Intn(1000000))
	if err := c.client.Set(ctx, key, code, ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set: %w", err)
	}
	return code, nil
}

func (c *Codes) Get(ctx context.Context, key string) (string, error) {
	code, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return code, nil
}

func (c *Codes) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *Codes) Close() error {
	return c.client.Close()
}
