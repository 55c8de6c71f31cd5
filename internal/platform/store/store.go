// Package store is the persistence substrate: the pooled relational DB with
// retry, the best-effort cache and the binary object storage
package store

import (
	"context"
	"errors"
	"fmt"

	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/store/blob"
	"bazaar/internal/platform/store/cache"
)

// Store holds the process-wide handles. Open builds it once at startup and
// the handle is passed to every collaborator; nil fields are disabled backends.
type Store struct {
	// Log is the logger handed to every backend
	Log logger.Logger

	DB    *DB
	Cache *cache.Cache
	Blob  *blob.Storage

	blobOpts []blob.Option
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes the minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag is a tiny interface to inspect command results
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repos use for sql
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open builds the backends in order: logger, pool, DB manager, cache, blob storage.
// A failure closes whatever was already built.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{Log: logger.Nop()}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	if cfg.DB.Enabled {
		db, err := openDB(ctx, cfg, s.Log)
		if err != nil {
			return nil, err
		}
		s.DB = db
	}

	if cfg.Cache.Enabled {
		c, err := openCache(ctx, cfg.Cache, s.Log)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.Cache = c
	}

	if cfg.Blob.Enabled {
		b, err := openBlob(cfg.Blob, s.Log, s.blobOpts)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.Blob = b
	}

	s.Log.Info().
		Bool("db", s.DB != nil).
		Bool("cache", s.Cache != nil).
		Str("storage", string(cfg.Blob.Provider)).
		Msg("store open")
	return s, nil
}

// Guard checks readiness of the pool. The cache is pinged too, but an
// unreachable cache only degrades to misses, so it is logged and never fails Guard.
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	if s.Cache != nil {
		if err := s.Cache.Ping(ctx); err != nil {
			logger.From(s.Log, ctx).Warn().Err(err).Str("component", "cache").Msg("cache not ready; serving without it")
		}
	}
	if s.DB != nil {
		if err := s.DB.Ping(ctx); err != nil {
			return fmt.Errorf("db: %w", err)
		}
	}
	return nil
}

// Close tears down in reverse open order; nil backends are skipped
func (s *Store) Close(_ context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db: %w", err))
		}
	}
	return errors.Join(errs...)
}
