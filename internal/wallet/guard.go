package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
)

// Guard serializes work per key.
type Guard interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// KeyedGuard is an in-process mutex per key. Waiters give up after timeout
// and idle keys are dropped once their last holder or waiter leaves.
type KeyedGuard struct {
	mu      sync.Mutex
	entries map[string]*guardEntry
	timeout time.Duration
}

type guardEntry struct {
	slot chan struct{}
	refs int
}

// NewKeyedGuard builds a guard with the provided wait bound. A zero timeout
// waits until the caller's context ends.
func NewKeyedGuard(timeout time.Duration) *KeyedGuard {
	return &KeyedGuard{
		entries: make(map[string]*guardEntry),
		timeout: timeout,
	}
}

// Acquire blocks until key is free and returns its release func.
func (g *KeyedGuard) Acquire(ctx context.Context, key string) (func(), error) {
	entry := g.ref(key)

	waitCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	select {
	case entry.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.slot
				g.unref(key, entry)
			})
		}, nil
	case <-waitCtx.Done():
		g.unref(key, entry)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("waiting for wallet lock: %w", err)
		}
		return nil, pkgerrors.New(pkgerrors.CodeLockTimeout, "timed out waiting for wallet lock").
			WithDetails(map[string]any{"timeout_ms": g.timeout.Milliseconds()})
	}
}

func (g *KeyedGuard) ref(key string) *guardEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.entries[key]
	if !ok {
		entry = &guardEntry{slot: make(chan struct{}, 1)}
		g.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (g *KeyedGuard) unref(key string, entry *guardEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry.refs--
	if entry.refs == 0 && g.entries[key] == entry {
		delete(g.entries, key)
	}
}

func (g *KeyedGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
