package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BalanceCache holds derived balance snapshots. It is never the source of
// truth: readers compare the snapshot's LastSequence against the store.
type BalanceCache interface {
	Get(ctx context.Context, key Key) (*Balance, error)
	Put(ctx context.Context, key Key, balance Balance) error
	Invalidate(ctx context.Context, key Key) error
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	WalletBalanceKey(tenantID, userID string) string
}

// RedisBalanceCache stores JSON snapshots under the wallet balance key.
type RedisBalanceCache struct {
	store cacheStore
	ttl   time.Duration
}

// NewRedisBalanceCache builds a cache on top of the shared redis client.
func NewRedisBalanceCache(store cacheStore, ttl time.Duration) (*RedisBalanceCache, error) {
	if store == nil {
		return nil, errors.New("redis client required for balance cache")
	}
	return &RedisBalanceCache{store: store, ttl: ttl}, nil
}

// Get returns nil without error on a miss.
func (c *RedisBalanceCache) Get(ctx context.Context, key Key) (*Balance, error) {
	raw, err := c.store.Get(ctx, c.key(key))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read balance cache: %w", err)
	}
	var balance Balance
	if err := json.Unmarshal([]byte(raw), &balance); err != nil {
		return nil, fmt.Errorf("decode balance cache: %w", err)
	}
	return &balance, nil
}

func (c *RedisBalanceCache) Put(ctx context.Context, key Key, balance Balance) error {
	payload, err := json.Marshal(balance)
	if err != nil {
		return fmt.Errorf("encode balance cache: %w", err)
	}
	if err := c.store.Set(ctx, c.key(key), string(payload), c.ttl); err != nil {
		return fmt.Errorf("write balance cache: %w", err)
	}
	return nil
}

func (c *RedisBalanceCache) Invalidate(ctx context.Context, key Key) error {
	if err := c.store.Del(ctx, c.key(key)); err != nil {
		return fmt.Errorf("invalidate balance cache: %w", err)
	}
	return nil
}

func (c *RedisBalanceCache) key(key Key) string {
	return c.store.WalletBalanceKey(key.TenantID.String(), key.UserID.String())
}

// NoopBalanceCache always misses.
type NoopBalanceCache struct{}

func (NoopBalanceCache) Get(context.Context, Key) (*Balance, error) { return nil, nil }

func (NoopBalanceCache) Put(context.Context, Key, Balance) error { return nil }

func (NoopBalanceCache) Invalidate(context.Context, Key) error { return nil }
