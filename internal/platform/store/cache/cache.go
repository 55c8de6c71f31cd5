// Package cache is the best-effort cache facade. No call returns an error to
// business code: backend faults and undecodable payloads are logged, counted
// and reported as a miss or a no-op. A nil *Cache is a valid disabled cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"bazaar/internal/platform/config"
	perr "bazaar/internal/platform/errors"
	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/metrics"

	goredis "github.com/redis/go-redis/v9"
)

// Backend selects where entries live
type Backend string

// Supported backends
const (
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)

// Defaults applied by Open
const (
	DefaultScanCount = 100
	DefaultMemoryMB  = 64
)

// Config selects and addresses the cache backend
type Config struct {
	Enabled bool
	Backend Backend

	// URL (redis://...) replaces Host, Port, Password, DB and TLS
	URL      string `env:"CACHE_URL"`
	Host     string `env:"CACHE_HOST" validate:"required_without=URL"`
	Port     int    `env:"CACHE_PORT" validate:"required_without=URL,gte=0,lte=65535"`
	Password string `env:"CACHE_PASSWORD"`
	DB       int    `env:"CACHE_DB" validate:"gte=0"`
	TLS      bool   `env:"CACHE_TLS"`

	Codec     string // json | msgpack
	ScanCount int64  // SCAN page size for prefix invalidation
	MemoryMB  int    // memory backend size cap
}

// Status says why a Get produced what it did
type Status uint8

const (
	StatusHit Status = iota
	StatusAbsent
	StatusBackendFault
	StatusDecodeFault
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusAbsent:
		return "absent"
	case StatusBackendFault:
		return "backend_fault"
	case StatusDecodeFault:
		return "decode_fault"
	default:
		return "disabled"
	}
}

// Result is a Get outcome; every non-hit is a Miss
type Result[T any] struct {
	Value  T
	Status Status
}

// Hit reports whether Value came from the cache
func (r Result[T]) Hit() bool { return r.Status == StatusHit }

// Miss reports whether the caller has to go to the source of truth
func (r Result[T]) Miss() bool { return r.Status != StatusHit }

type backend interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	deletePrefix(ctx context.Context, prefix string) (int, error)
	ping(ctx context.Context) error
	close() error
}

// ttlLimiter is implemented by backends that cannot hold entries forever
type ttlLimiter interface {
	maxTTL() time.Duration
}

// Cache is the facade; safe for concurrent use
type Cache struct {
	b     backend
	codec Codec
	log   logger.Logger
}

// newRedisClient is a seam for tests
var newRedisClient = func(opt *goredis.Options) goredis.UniversalClient { return goredis.NewClient(opt) }

// Open builds the configured backend. Connectivity is not checked here: an
// unreachable redis degrades to misses and shows up in Ping.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	log = log.With().Str("component", "cache").Str("backend", string(cfg.Backend)).Logger()

	var b backend
	switch cfg.Backend {
	case BackendMemory:
		mb, err := newMemoryBackend(ctx, cfg.MemoryMB)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeConfig, "cache: memory backend")
		}
		b = mb
	case BackendRedis, "":
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
		opt, err := newRedisOptions(cfg)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeConfig, "cache: invalid redis url")
		}
		count := cfg.ScanCount
		if count <= 0 {
			count = DefaultScanCount
		}
		b = &redisBackend{rdb: newRedisClient(opt), scanCount: count}
	default:
		return nil, perr.Configf("cache: unknown backend %q", cfg.Backend)
	}

	c := &Cache{b: b, codec: CodecFor(cfg.Codec), log: log}
	log.Info().Str("codec", c.codec.Name()).Msg("cache ready")
	return c, nil
}

// newCache wraps an arbitrary backend
func newCache(b backend, codec Codec, log logger.Logger) *Cache {
	if codec == nil {
		codec = JSON{}
	}
	return &Cache{b: b, codec: codec, log: log}
}

// guard turns a backend panic into an error so nothing escapes the facade
func guard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("cache backend panic: %v", r)
	}
}

func (c *Cache) raw(ctx context.Context, key string) (b []byte, ok bool, err error) {
	defer guard(&err)
	return c.b.get(ctx, key)
}

// Get reads key and decodes it into T
func Get[T any](ctx context.Context, c *Cache, key string) Result[T] {
	var res Result[T]
	if c == nil {
		res.Status = StatusDisabled
		return res
	}
	b, ok, err := c.raw(ctx, key)
	switch {
	case err != nil:
		res.Status = StatusBackendFault
		c.fault(ctx, "get", "key", key, err)
	case !ok:
		res.Status = StatusAbsent
	default:
		if err := c.codec.Unmarshal(b, &res.Value); err != nil {
			var zero T
			res.Value = zero
			res.Status = StatusDecodeFault
			c.fault(ctx, "get", "key", key, err)
			break
		}
		res.Status = StatusHit
	}
	result := metrics.Miss
	if res.Hit() {
		result = metrics.Hit
	}
	metrics.CacheRequestsTotal.WithLabelValues("get", result).Inc()
	return res
}

// Set encodes value and stores it for ttl (zero keeps it until evicted).
// Failures are logged and dropped. The memory backend holds nothing longer
// than 24h; a longer ttl is clamped to that and logged.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil {
		return
	}
	if lim, ok := c.b.(ttlLimiter); ok && ttl > lim.maxTTL() {
		c.log.Warn().Str("key", key).Dur("ttl", ttl).Dur("max_ttl", lim.maxTTL()).Msg("cache ttl clamped")
		ttl = lim.maxTTL()
	}
	err := c.set(ctx, key, value, ttl)
	if err != nil {
		c.fault(ctx, "set", "key", key, err)
		metrics.CacheRequestsTotal.WithLabelValues("set", metrics.Fail).Inc()
		return
	}
	metrics.CacheRequestsTotal.WithLabelValues("set", metrics.Ok).Inc()
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) (err error) {
	defer guard(&err)
	b, err := c.codec.Marshal(value)
	if err != nil {
		return err
	}
	return c.b.set(ctx, key, b, ttl)
}

// InvalidatePrefix deletes every key starting with prefix and returns how many
// went. An empty prefix is refused. Scan or delete faults stop the sweep and are logged.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) int {
	if c == nil {
		return 0
	}
	if prefix == "" {
		c.log.Warn().Msg("refusing to invalidate an empty cache prefix")
		return 0
	}
	n, err := c.sweep(ctx, prefix)
	metrics.CacheInvalidatedKeysTotal.Add(float64(n))
	if err != nil {
		c.fault(ctx, "invalidate", "prefix", prefix, err)
		metrics.CacheRequestsTotal.WithLabelValues("invalidate", metrics.Fail).Inc()
		return n
	}
	metrics.CacheRequestsTotal.WithLabelValues("invalidate", metrics.Ok).Inc()
	logger.From(c.log, ctx).Debug().Str("prefix", prefix).Int("deleted", n).Msg("cache prefix invalidated")
	return n
}

func (c *Cache) sweep(ctx context.Context, prefix string) (n int, err error) {
	defer guard(&err)
	return c.b.deletePrefix(ctx, prefix)
}

// Remember returns the cached value for key or loads, stores and returns it.
// Only load errors are returned.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	if res := Get[T](ctx, c, key); res.Hit() {
		return res.Value, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(ctx, key, v, ttl)
	return v, nil
}

// Ping reports backend reachability for readiness probes
func (c *Cache) Ping(ctx context.Context) (err error) {
	if c == nil {
		return nil
	}
	defer guard(&err)
	return c.b.ping(ctx)
}

// Close releases the backend
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.b.close()
}

func (c *Cache) fault(ctx context.Context, op, field, val string, err error) {
	logger.From(c.log, ctx).Warn().Str("cache_op", op).Str(field, val).Err(err).Msg("cache degraded")
}
