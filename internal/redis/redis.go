// Package redis caches access-token ownership so hot requests skip the
// user_tokens table.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voicelog/internal/config"

	redis "github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "voicelog:token:"

var errNotInitialized = errors.New("redis client not initialized")

// Client wraps go-redis with the token cache operations auth needs.
type Client struct {
	inner *redis.Client
}

// Enabled reports whether the config asks for a redis cache at all.
func Enabled(cfg *config.Config) bool {
	return cfg != nil && cfg.Redis.Host != ""
}

// NewRedisClient creates the redis client from app config and pings it.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{inner: client}, nil
}

// RememberToken records that tokenID belongs to userID for ttl.
func (c *Client) RememberToken(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.Set(ctx, tokenKey(tokenID), userID, ttl).Err()
}

// TokenOwner returns the cached owner of tokenID. found is false on a miss.
func (c *Client) TokenOwner(ctx context.Context, tokenID string) (userID string, found bool, err error) {
	if c == nil || c.inner == nil {
		return "", false, errNotInitialized
	}
	userID, err = c.inner.Get(ctx, tokenKey(tokenID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

// ForgetTokens drops cached entries for the given token ids.
func (c *Client) ForgetTokens(ctx context.Context, tokenIDs ...string) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	if len(tokenIDs) == 0 {
		return nil
	}
	keys := make([]string, len(tokenIDs))
	for i, id := range tokenIDs {
		keys[i] = tokenKey(id)
	}
	return c.inner.Del(ctx, keys...).Err()
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// Raw exposes underlying go-redis client.
func (c *Client) Raw() *redis.Client {
	if c == nil {
		return nil
	}
	return c.inner
}

func tokenKey(tokenID string) string {
	return tokenKeyPrefix + tokenID
}
