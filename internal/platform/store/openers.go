package store

import (
	"context"
	"time"

	perr "bazaar/internal/platform/errors"
	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/store/blob"
	"bazaar/internal/platform/store/cache"
	"bazaar/internal/platform/store/pg"
	"bazaar/internal/platform/store/retry"
)

// boot guard backoff
const (
	guardBackoffStart   = 150 * time.Millisecond
	guardBackoffCeiling = 2 * time.Second
)

// seams for tests
var (
	openPool = pg.Open
	pingPool = func(ctx context.Context, p *pg.PG) error { return p.Pool.Ping(ctx) }
	sleep    = time.Sleep
)

// openDB builds the pool, waits for it to answer, then wraps it in the DB manager
func openDB(ctx context.Context, cfg Config, log logger.Logger) (*DB, error) {
	dc := cfg.DB
	pool := dc.Pool
	if pool.AppName == "" {
		pool.AppName = cfg.AppName
	}

	var tracer pg.QueryTracer
	if dc.LogSQL {
		tracer = pg.Tracer(log)
	}

	p, err := openPool(ctx, pool, tracer, nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfig, "db: building pool")
	}
	if err := guardPool(ctx, p, dc, log); err != nil {
		p.Close()
		return nil, err
	}

	np := pool.Normalize()
	capacity := int64(0)
	if np.QueueLimit > 0 {
		capacity = int64(np.ConnectionLimit) + int64(np.QueueLimit)
	}
	policy := retry.New(
		retry.WithMaxAttempts(dc.RetryAttempts),
		retry.WithDelays(dc.RetryBaseDelay, dc.RetryMaxDelay),
		retry.WithNotify(retryLogger(log)),
	)

	log.Info().
		Int32("connection_limit", np.ConnectionLimit).
		Int32("idle_limit", np.IdleLimit).
		Int("queue_limit", np.QueueLimit).
		Str("tls", string(np.TLS)).
		Int("retry_attempts", policy.MaxAttempts()).
		Msg("db pool ready")

	return newDB(newPGAdapter(p), DBOptions{
		Capacity:      capacity,
		Policy:        policy,
		HealthTimeout: dc.HealthTimeout,
		Log:           log,
	}), nil
}

// guardPool pings with exponential backoff until the server answers or the
// attempt budget is spent; pings go straight to the pool so nothing is traced
func guardPool(ctx context.Context, p *pg.PG, dc DBConfig, log logger.Logger) error {
	attempts := dc.ConnectRetries
	if attempts < 1 {
		attempts = DefaultConnectRetries
	}
	timeout := dc.PingTimeout
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}

	var lastErr error
	backoff := guardBackoffStart
	for i := 1; i <= attempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = pingPool(toCtx, p)
		cancel()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Int("attempt", i).Dur("backoff", backoff).Err(lastErr).Msg("waiting for postgres")
		if i == attempts {
			break
		}
		sleep(backoff)
		backoff = min(backoff*2, guardBackoffCeiling)
	}
	return perr.Wrapf(lastErr, perr.ErrorCodeUnavailable, "db: ping failed after %d attempts", attempts)
}

func openCache(ctx context.Context, cfg cache.Config, log logger.Logger) (*cache.Cache, error) {
	return cache.Open(ctx, cfg, log)
}

func openBlob(cfg blob.Config, log logger.Logger, opts []blob.Option) (*blob.Storage, error) {
	return blob.Open(cfg, log, opts...)
}
