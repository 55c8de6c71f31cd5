package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// redisBackend talks to a shared redis; prefix sweeps use incremental SCAN
type redisBackend struct {
	rdb       goredis.UniversalClient
	scanCount int64
}

func newRedisOptions(cfg Config) (*goredis.Options, error) {
	if cfg.URL != "" {
		return goredis.ParseURL(cfg.URL)
	}
	opt := &goredis.Options{
		Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.Host}
	}
	return opt, nil
}

func (r *redisBackend) get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *redisBackend) set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.Set(ctx, key, val, ttl).Err()
}

// deletePrefix walks the keyspace page by page and deletes each page in one DEL
func (r *redisBackend) deletePrefix(ctx context.Context, prefix string) (int, error) {
	match := globEscape(prefix) + "*"
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, match, r.scanCount).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := r.rdb.Del(ctx, keys...).Result()
			deleted += int(n)
			if err != nil {
				return deleted, err
			}
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

func (r *redisBackend) ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func (r *redisBackend) close() error {
	if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

// globEscape quotes the characters SCAN MATCH treats as pattern syntax
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
