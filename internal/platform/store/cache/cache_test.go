package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	perr "bazaar/internal/platform/errors"
	"bazaar/internal/platform/logger"
	kit "bazaar/internal/platform/testkit"

	goredis "github.com/redis/go-redis/v9"
)

// brokenBackend fails every call, either by error or by panic
type brokenBackend struct {
	panics bool
	calls  atomic.Int32
}

func (b *brokenBackend) fail() error {
	b.calls.Add(1)
	if b.panics {
		panic("connection refused")
	}
	return errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

func (b *brokenBackend) get(context.Context, string) ([]byte, bool, error) { return nil, false, b.fail() }
func (b *brokenBackend) set(context.Context, string, []byte, time.Duration) error {
	return b.fail()
}
func (b *brokenBackend) deletePrefix(context.Context, string) (int, error) { return 0, b.fail() }
func (b *brokenBackend) ping(context.Context) error                       { return b.fail() }
func (b *brokenBackend) close() error                                     { return nil }

type summary struct {
	Listings int    `json:"listings" msgpack:"listings"`
	Label    string `json:"label" msgpack:"label"`
}

func newMemory(t *testing.T, codec Codec) (*Cache, *memoryBackend) {
	t.Helper()
	mb, err := newMemoryBackend(context.Background(), 8)
	if err != nil {
		t.Fatalf("newMemoryBackend: %v", err)
	}
	t.Cleanup(func() { _ = mb.close() })
	return newCache(mb, codec, logger.Nop()), mb
}

func TestBrokenBackend_NeverSurfaces(t *testing.T) {
	for _, panics := range []bool{false, true} {
		var buf kit.LogBuffer
		b := &brokenBackend{panics: panics}
		c := newCache(b, JSON{}, logger.New(logger.Options{Format: "json", Writer: &buf}))
		ctx := context.Background()

		kit.MustNotPanic(t, func() {
			res := Get[summary](ctx, c, "stats:summary")
			if !res.Miss() || res.Status != StatusBackendFault {
				t.Fatalf("panics=%v: Get = %+v, want backend fault miss", panics, res)
			}
			c.Set(ctx, "stats:summary", summary{Listings: 3}, time.Minute)
			if n := c.InvalidatePrefix(ctx, "stats:"); n != 0 {
				t.Fatalf("panics=%v: InvalidatePrefix = %d", panics, n)
			}
		})
		if got := b.calls.Load(); got != 3 {
			t.Fatalf("panics=%v: backend calls = %d, want 3", panics, got)
		}
		if got := buf.Count("cache degraded"); got != 3 {
			t.Fatalf("panics=%v: degraded log lines = %d, want 3\n%s", panics, got, buf.String())
		}
		if err := c.Ping(ctx); err == nil {
			t.Fatalf("panics=%v: Ping should report the fault", panics)
		}
	}
}

func TestNilCache_IsDisabled(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	res := Get[int](ctx, c, "k")
	if res.Hit() || res.Status != StatusDisabled {
		t.Fatalf("Get on nil cache = %+v", res)
	}
	c.Set(ctx, "k", 1, 0)
	if c.InvalidatePrefix(ctx, "k") != 0 || c.Ping(ctx) != nil || c.Close() != nil {
		t.Fatal("nil cache should be a no-op")
	}
}

func TestMemory_SetGet(t *testing.T) {
	for _, codec := range []Codec{JSON{}, Msgpack{}} {
		c, _ := newMemory(t, codec)
		ctx := context.Background()

		if res := Get[summary](ctx, c, "stats:summary"); res.Status != StatusAbsent {
			t.Fatalf("%s: empty cache Get = %+v", codec.Name(), res)
		}
		want := summary{Listings: 7, Label: "weekly"}
		c.Set(ctx, "stats:summary", want, time.Minute)

		res := Get[summary](ctx, c, "stats:summary")
		if !res.Hit() || res.Value != want {
			t.Fatalf("%s: Get = %+v, want hit %+v", codec.Name(), res, want)
		}
	}
}

func TestMemory_DecodeFaultIsMiss(t *testing.T) {
	c, mb := newMemory(t, JSON{})
	ctx := context.Background()
	if err := mb.set(ctx, "stats:summary", []byte("{not json"), 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res := Get[summary](ctx, c, "stats:summary")
	if res.Hit() || res.Status != StatusDecodeFault || res.Value != (summary{}) {
		t.Fatalf("Get = %+v, want zero decode fault", res)
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	c, mb := newMemory(t, JSON{})
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	mb.now = func() time.Time { return now }

	c.Set(ctx, "session:1", "a", 30*time.Second)
	c.Set(ctx, "session:2", "b", 0)

	now = now.Add(29 * time.Second)
	if !Get[string](ctx, c, "session:1").Hit() {
		t.Fatal("entry expired early")
	}
	now = now.Add(2 * time.Second)
	if res := Get[string](ctx, c, "session:1"); res.Status != StatusAbsent {
		t.Fatalf("expired entry Get = %+v", res)
	}
	if !Get[string](ctx, c, "session:2").Hit() {
		t.Fatal("zero ttl entry should not expire")
	}
}

func TestMemory_TTLBeyondLifeWindowIsClamped(t *testing.T) {
	var buf kit.LogBuffer
	mb, err := newMemoryBackend(context.Background(), 8)
	if err != nil {
		t.Fatalf("newMemoryBackend: %v", err)
	}
	t.Cleanup(func() { _ = mb.close() })
	c := newCache(mb, JSON{}, logger.New(logger.Options{Format: "json", Writer: &buf}))
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	mb.now = func() time.Time { return now }

	c.Set(ctx, "week", "w", 7*24*time.Hour)
	c.Set(ctx, "day", "d", memoryLifeWindow)
	if buf.Count("cache ttl clamped") != 1 {
		t.Fatalf("want one clamp warning:\n%s", buf.String())
	}

	now = now.Add(memoryLifeWindow - time.Second)
	if !Get[string](ctx, c, "week").Hit() {
		t.Fatal("clamped entry expired early")
	}
	now = now.Add(2 * time.Second)
	if res := Get[string](ctx, c, "week"); res.Status != StatusAbsent {
		t.Fatalf("entry outlived the life window: %+v", res)
	}
}

func TestMemory_InvalidatePrefix(t *testing.T) {
	c, _ := newMemory(t, JSON{})
	ctx := context.Background()

	c.Set(ctx, "stats:summary", 1, 0)
	c.Set(ctx, "stats:daily", 2, 0)
	c.Set(ctx, "listings:42", 3, 0)

	if n := c.InvalidatePrefix(ctx, "stats:"); n != 2 {
		t.Fatalf("InvalidatePrefix = %d, want 2", n)
	}
	for _, k := range []string{"stats:summary", "stats:daily"} {
		if res := Get[int](ctx, c, k); res.Status != StatusAbsent {
			t.Fatalf("%s survived invalidation: %+v", k, res)
		}
	}
	if res := Get[int](ctx, c, "listings:42"); !res.Hit() || res.Value != 3 {
		t.Fatalf("unrelated key lost: %+v", res)
	}
}

func TestInvalidatePrefix_EmptyRefused(t *testing.T) {
	c, _ := newMemory(t, JSON{})
	ctx := context.Background()
	c.Set(ctx, "a", 1, 0)
	if n := c.InvalidatePrefix(ctx, ""); n != 0 {
		t.Fatalf("empty prefix deleted %d keys", n)
	}
	if !Get[int](ctx, c, "a").Hit() {
		t.Fatal("empty prefix must not flush the cache")
	}
}

func TestRemember(t *testing.T) {
	c, _ := newMemory(t, JSON{})
	ctx := context.Background()

	loads := 0
	load := func(context.Context) (summary, error) {
		loads++
		return summary{Listings: loads}, nil
	}
	for i := 0; i < 3; i++ {
		v, err := Remember(ctx, c, "stats:summary", time.Minute, load)
		if err != nil || v.Listings != 1 {
			t.Fatalf("Remember #%d = %+v, %v", i, v, err)
		}
	}
	if loads != 1 {
		t.Fatalf("loads = %d, want 1", loads)
	}

	boom := errors.New("db down")
	if _, err := Remember(ctx, c, "stats:other", time.Minute, func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("load error not returned: %v", err)
	}
	if Get[int](ctx, c, "stats:other").Hit() {
		t.Fatal("failed load must not be cached")
	}

	// broken backend still serves through the loader
	bc := newCache(&brokenBackend{}, JSON{}, logger.Nop())
	v, err := Remember(ctx, bc, "k", time.Minute, func(context.Context) (int, error) { return 9, nil })
	if err != nil || v != 9 {
		t.Fatalf("Remember over broken backend = %d, %v", v, err)
	}
}

func TestGlobEscape(t *testing.T) {
	cases := map[string]string{
		"stats:":     "stats:",
		"a*b":        `a\*b`,
		"q?[x]":      `q\?\[x\]`,
		`back\slash`: `back\\slash`,
	}
	for in, want := range cases {
		if got := globEscape(in); got != want {
			t.Fatalf("globEscape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRedisOptions(t *testing.T) {
	opt, err := newRedisOptions(Config{Host: "cache.internal", Port: 6380, Password: "pw", DB: 2, TLS: true})
	if err != nil {
		t.Fatalf("newRedisOptions: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.Password != "pw" || opt.DB != 2 {
		t.Fatalf("options = %+v", opt)
	}
	if opt.TLSConfig == nil || opt.TLSConfig.ServerName != "cache.internal" {
		t.Fatalf("tls not configured: %+v", opt.TLSConfig)
	}

	opt, err = newRedisOptions(Config{URL: "redis://:secret@10.0.0.5:6379/3", Host: "ignored"})
	if err != nil {
		t.Fatalf("newRedisOptions url: %v", err)
	}
	if opt.Addr != "10.0.0.5:6379" || opt.Password != "secret" || opt.DB != 3 {
		t.Fatalf("url options = %+v", opt)
	}

	if _, err := newRedisOptions(Config{URL: "http://nope"}); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, Config{Enabled: false}, logger.Nop())
	if err != nil || c != nil {
		t.Fatalf("disabled Open = %v, %v", c, err)
	}

	if _, err := Open(ctx, Config{Enabled: true, Backend: "memcached"}, logger.Nop()); err == nil || !strings.Contains(err.Error(), "memcached") {
		t.Fatalf("unknown backend err = %v", err)
	}

	_, err = Open(ctx, Config{Enabled: true, Backend: BackendRedis, Port: 6379}, logger.Nop())
	if e, ok := perr.As(err); !ok || e.Code() != perr.ErrorCodeConfig || e.Field() != "CACHE_HOST" {
		t.Fatalf("redis without host or url err = %v", err)
	}
	if _, err := Open(ctx, Config{Enabled: true, Backend: BackendRedis, Host: "localhost", Port: 70000}, logger.Nop()); !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("out of range port err = %v", err)
	}

	var got *goredis.Options
	kit.Swap(t, &newRedisClient, func(opt *goredis.Options) goredis.UniversalClient {
		got = opt
		return goredis.NewClient(opt)
	})
	c, err = Open(ctx, Config{Enabled: true, Backend: BackendRedis, Host: "localhost", Port: 6379, Codec: "msgpack"}, logger.Nop())
	if err != nil {
		t.Fatalf("redis Open: %v", err)
	}
	defer c.Close()
	if got == nil || got.Addr != "localhost:6379" {
		t.Fatalf("redis client options = %+v", got)
	}
	if c.codec.Name() != "msgpack" {
		t.Fatalf("codec = %s", c.codec.Name())
	}

	m, err := Open(ctx, Config{Enabled: true, Backend: BackendMemory, MemoryMB: 8}, logger.Nop())
	if err != nil {
		t.Fatalf("memory Open: %v", err)
	}
	defer m.Close()
	if err := m.Ping(ctx); err != nil {
		t.Fatalf("memory Ping: %v", err)
	}
}

func TestCodecFor(t *testing.T) {
	if CodecFor(" MsgPack ").Name() != "msgpack" || CodecFor("").Name() != "json" || CodecFor("yaml").Name() != "json" {
		t.Fatal("CodecFor mismatch")
	}
}
