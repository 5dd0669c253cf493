package wallet

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/licensehub-wallet/pkg/db/models"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(&models.WalletTransaction{}); err != nil {
		t.Fatalf("migrate wallet transactions: %v", err)
	}
	return conn
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type memoryCache struct {
	mu            sync.Mutex
	entries       map[Key]Balance
	puts          int
	invalidations int
	getErr        error
	putErr        error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[Key]Balance{}}
}

func (c *memoryCache) Get(_ context.Context, key Key) (*Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	balance, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &balance, nil
}

func (c *memoryCache) Put(_ context.Context, key Key, balance Balance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[key] = balance
	c.puts++
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.invalidations++
	return nil
}

func (c *memoryCache) stats() (puts, invalidations int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts, c.invalidations
}

func (c *memoryCache) failPuts(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putErr = err
}

func (c *memoryCache) snapshot(key Key) (Balance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	balance, ok := c.entries[key]
	return balance, ok
}

func (c *memoryCache) poison(key Key, balance Balance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = balance
}

// steppingClock advances one second per call.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *steppingClock) rewind(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(-d)
}

type testEnv struct {
	db      *gorm.DB
	repo    Repository
	cache   *memoryCache
	clock   *steppingClock
	service Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newWrappedTestEnv(t, nil)
}

// newWrappedTestEnv builds the service over wrap(repo) when wrap is set.
func newWrappedTestEnv(t *testing.T, wrap func(Repository) Repository) *testEnv {
	t.Helper()
	conn := newTestDB(t)
	env := &testEnv{
		db:    conn,
		repo:  NewRepository(conn),
		cache: newMemoryCache(),
		clock: newSteppingClock(),
	}
	if wrap != nil {
		env.repo = wrap(env.repo)
	}
	svc, err := NewService(ServiceParams{
		Repo:   env.repo,
		Tx:     gormTxRunner{db: conn},
		Cache:  env.cache,
		Guard:  NewKeyedGuard(2 * time.Second),
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Clock:  env.clock.Now,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	env.service = svc
	return env
}

func (e *testEnv) count(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&models.WalletTransaction{}).Count(&n).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}
