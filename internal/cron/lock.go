package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultLockTTL outlives a reconcile pass over a large tenant set.
const defaultLockTTL = 2 * time.Hour

// ErrLockLost is returned by Refresh once another replica owns the lock.
var ErrLockLost = errors.New("cron lock lost")

// Lock keeps a single cron-worker replica running jobs at a time.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndExpire(ctx context.Context, key, expected string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// RedisLock is a lease held under a random owner token. Refresh and Release
// only touch the key while it still carries that token.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for lock")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Refresh pushes the lease out by another TTL.
func (l *RedisLock) Refresh(ctx context.Context) error {
	token := l.current()
	if token == "" {
		return ErrLockLost
	}
	ok, err := l.store.CompareAndExpire(ctx, l.key, token, l.ttl)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", l.key, err)
	}
	if !ok {
		l.clear(token)
		return ErrLockLost
	}
	return nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	token := l.current()
	if token == "" {
		return nil
	}
	defer l.clear(token)
	if _, err := l.store.CompareAndDelete(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

func (l *RedisLock) current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token
}

func (l *RedisLock) clear(token string) {
	l.mu.Lock()
	if l.token == token {
		l.token = ""
	}
	l.mu.Unlock()
}
