package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliamunaev/facility-gateway/internal/model"
)

const keyPrefix = "facility-gateway:refdata:"

// Store is a byte cache with expiry.
type Store interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Cached serves lookups from a Store and falls back to the wrapped Lookup
// on a miss. Store failures are logged and treated as misses; they never
// fail a lookup.
type Cached struct {
	next   Lookup
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps next with store. A nil logger discards store warnings.
func NewCached(next Lookup, store Store, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cached{next: next, store: store, ttl: ttl, logger: logger}
}

func (c *Cached) IsSupportedProductType(ctx context.Context, code string) (bool, error) {
	return cachedCall(ctx, c, "product-type:"+code, func(ctx context.Context) (bool, error) {
		return c.next.IsSupportedProductType(ctx, code)
	})
}

func (c *Cached) SupportedCurrencies(ctx context.Context) ([]string, error) {
	return cachedCall(ctx, c, "currencies", c.next.SupportedCurrencies)
}

func (c *Cached) CounterpartyRoles(ctx context.Context) ([]model.CounterpartyRole, error) {
	return cachedCall(ctx, c, "counterparty-roles", c.next.CounterpartyRoles)
}

func (c *Cached) ObligationSubtypes(ctx context.Context) ([]model.ObligationSubtype, error) {
	return cachedCall(ctx, c, "obligation-subtypes", c.next.ObligationSubtypes)
}

func cachedCall[T any](ctx context.Context, c *Cached, key string, load func(context.Context) (T, error)) (T, error) {
	key = keyPrefix + key

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "reference cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.logger.WarnContext(ctx, "reference cache entry corrupt", slog.String("key", key))
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err == nil {
		err = c.store.Set(ctx, key, raw, c.ttl)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "reference cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return v, nil
}

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore returns a Store using rdb.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, val, ttl).Err()
}

// MemoryStore is an in-process Store for single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	val     []byte
	expires time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memoryEntry{val: val}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}
