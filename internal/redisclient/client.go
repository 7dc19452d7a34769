package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const acceptanceTokensKey = "gateway:acceptance_tokens"

// ErrCacheMiss is returned when a key is absent; callers fall through to
// the origin.
var ErrCacheMiss = errors.New("cache miss")

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetAcceptanceTokens caches the merchant's acceptance tokens. The TTL
// keeps the cache well inside the gateway's own token rotation window.
func (c *Client) SetAcceptanceTokens(ctx context.Context, tokens interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal acceptance tokens: %w", err)
	}
	return c.rdb.Set(ctx, acceptanceTokensKey, payload, ttl).Err()
}

// GetAcceptanceTokens loads cached acceptance tokens into dest. Returns
// ErrCacheMiss when nothing is cached.
func (c *Client) GetAcceptanceTokens(ctx context.Context, dest interface{}) error {
	payload, err := c.rdb.Get(ctx, acceptanceTokensKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dest)
}

// InvalidateAcceptanceTokens drops the cached tokens, forcing the next
// read through to the gateway
func (c *Client) InvalidateAcceptanceTokens(ctx context.Context) error {
	return c.rdb.Del(ctx, acceptanceTokensKey).Err()
}
