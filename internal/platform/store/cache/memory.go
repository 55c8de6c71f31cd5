package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
)

// memoryLifeWindow is the bigcache-wide upper bound on entry age; per-entry
// TTLs are kept in an 8-byte header in front of the payload
const memoryLifeWindow = 24 * time.Hour

const expiryHeader = 8

// memoryBackend is the in-process backend used when no redis is configured
type memoryBackend struct {
	bc  *bigcache.BigCache
	now func() time.Time
}

func newMemoryBackend(ctx context.Context, sizeMB int) (*memoryBackend, error) {
	conf := bigcache.DefaultConfig(memoryLifeWindow)
	conf.Shards = 64
	conf.MaxEntriesInWindow = 10_000
	conf.CleanWindow = time.Minute
	conf.Verbose = false
	if sizeMB > 0 {
		conf.HardMaxCacheSize = sizeMB
	}
	bc, err := bigcache.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &memoryBackend{bc: bc, now: time.Now}, nil
}

func (m *memoryBackend) get(_ context.Context, key string) ([]byte, bool, error) {
	raw, err := m.bc.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(raw) < expiryHeader {
		return nil, false, errors.New("cache: truncated memory entry")
	}
	if exp := int64(binary.BigEndian.Uint64(raw)); exp != 0 && m.now().UnixNano() >= exp {
		_ = m.bc.Delete(key)
		return nil, false, nil
	}
	return raw[expiryHeader:], true, nil
}

func (m *memoryBackend) set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = m.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, expiryHeader+len(val))
	binary.BigEndian.PutUint64(buf, uint64(exp))
	copy(buf[expiryHeader:], val)
	return m.bc.Set(key, buf)
}

// deletePrefix collects matching keys with the shard iterator, then deletes them
func (m *memoryBackend) deletePrefix(_ context.Context, prefix string) (int, error) {
	var keys []string
	it := m.bc.Iterator()
	for it.SetNext() {
		e, err := it.Value()
		if err != nil {
			return 0, err
		}
		if strings.HasPrefix(e.Key(), prefix) {
			keys = append(keys, e.Key())
		}
	}
	deleted := 0
	for _, k := range keys {
		err := m.bc.Delete(k)
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			continue
		}
		if err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (m *memoryBackend) maxTTL() time.Duration { return memoryLifeWindow }

func (m *memoryBackend) ping(context.Context) error { return nil }

func (m *memoryBackend) close() error { return m.bc.Close() }
