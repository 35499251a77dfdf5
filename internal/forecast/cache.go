package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how stale a served forecast can be.
const DefaultCacheTTL = time.Hour

// Key identifies a cached forecast.
type Key struct {
	LotID uint64
	Hours int
}

func (k Key) String() string { return fmt.Sprintf("lot_%d_%d", k.LotID, k.Hours) }

// Cache stores computed forecasts. Entries expire by TTL only; concurrent
// writers for the same key simply overwrite each other.
type Cache interface {
	Get(ctx context.Context, k Key) ([]Point, bool)
	Set(ctx context.Context, k Key, pts []Point)
}

type memoryEntry struct {
	points     []Point
	computedAt time.Time
}

// MemoryCache is a process-local cache with an injectable clock.
type MemoryCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[Key]memoryEntry
}

// NewMemoryCache returns a cache whose entries live for ttl as measured by
// now. A nil clock uses time.Now.
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{ttl: ttl, now: now, entries: make(map[Key]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, k Key) ([]Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.computedAt) >= c.ttl {
		delete(c.entries, k)
		return nil, false
	}
	return e.points, true
}

func (c *MemoryCache) Set(_ context.Context, k Key, pts []Point) {
	c.mu.Lock()
	c.entries[k] = memoryEntry{points: pts, computedAt: c.now()}
	c.mu.Unlock()
}

// RedisCache shares forecasts between instances. Redis errors are logged
// and treated as misses.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *log.Logger
}

// NewRedisCache stores entries under prefix with a server-side TTL.
func NewRedisCache(rdb *redis.Client, ttl time.Duration, prefix string, logger *log.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if prefix == "" {
		prefix = "forecast"
	}
	if logger == nil {
		logger = log.New("forecast-cache")
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: prefix, logger: logger}
}

func (c *RedisCache) key(k Key) string { return c.prefix + ":" + k.String() }

func (c *RedisCache) Get(ctx context.Context, k Key) ([]Point, bool) {
	b, err := c.rdb.Get(ctx, c.key(k)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warnf("redis get %s: %v", c.key(k), err)
		}
		return nil, false
	}
	var pts []Point
	if err := json.Unmarshal(b, &pts); err != nil {
		c.logger.Warnf("decode cached forecast %s: %v", c.key(k), err)
		return nil, false
	}
	return pts, true
}

func (c *RedisCache) Set(ctx context.Context, k Key, pts []Point) {
	b, err := json.Marshal(pts)
	if err != nil {
		c.logger.Warnf("encode forecast %s: %v", c.key(k), err)
		return
	}
	if err := c.rdb.Set(ctx, c.key(k), b, c.ttl).Err(); err != nil {
		c.logger.Warnf("redis set %s: %v", c.key(k), err)
	}
}
