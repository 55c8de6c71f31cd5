package store

import (
	"context"
	"strings"
	"time"

	perr "bazaar/internal/platform/errors"
	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/metrics"
	"bazaar/internal/platform/store/retry"

	"golang.org/x/sync/semaphore"
)

// DefaultHealthTimeout bounds HealthCheck when the caller passes zero
const DefaultHealthTimeout = 2 * time.Second

// conn is the single-attempt statement surface DB drives; pgAdapter in production
type conn interface {
	RowQuerier
	Pinger
}

// DB is the connection pool manager: every statement is admitted through the
// queue gate, borrows one pooled connection and runs under the retry policy.
// One DB is built per process by Open and shared by every caller.
type DB struct {
	c             conn
	policy        retry.Policy
	gate          *semaphore.Weighted // nil = unbounded wait queue
	log           logger.Logger
	healthTimeout time.Duration
}

// DBOptions tunes a DB beyond its connection
type DBOptions struct {
	// Capacity is connections plus queued waiters; <= 0 disables fail-fast admission
	Capacity      int64
	Policy        retry.Policy
	HealthTimeout time.Duration
	Log           logger.Logger
}

// newDB wires c behind the gate and policy; a zero Policy means retry.New()
func newDB(c conn, o DBOptions) *DB {
	db := &DB{
		c:             c,
		log:           o.Log.With().Str("component", "db").Logger(),
		healthTimeout: o.HealthTimeout,
	}
	if db.healthTimeout <= 0 {
		db.healthTimeout = DefaultHealthTimeout
	}
	if o.Capacity > 0 {
		db.gate = semaphore.NewWeighted(o.Capacity)
	}
	db.policy = o.Policy
	if db.policy.MaxAttempts() == 0 {
		db.policy = retry.New()
	}
	return db
}

// retryLogger builds the notify hook for a policy built from cfg
func retryLogger(log logger.Logger) func(retry.Event) {
	log = log.With().Str("component", "db").Logger()
	return func(ev retry.Event) {
		metrics.DBRetriesTotal.WithLabelValues(string(ev.Fault)).Inc()
		log.Warn().
			Str("stmt", ev.Op).
			Int("attempt", ev.Attempt).
			Str("fault", string(ev.Fault)).
			Int64("delay_ms", ev.Delay.Milliseconds()).
			Err(ev.Err).
			Msg("retrying statement")
	}
}

// admit takes a slot in the wait queue or fails fast when it is full
func (db *DB) admit() (release func(), err error) {
	if db.gate == nil {
		return func() {}, nil
	}
	if !db.gate.TryAcquire(1) {
		metrics.DBPoolExhaustedTotal.Inc()
		return nil, perr.ErrPoolExhausted
	}
	return func() { db.gate.Release(1) }, nil
}

// run admits once and drives fn through the retry policy
func (db *DB) run(ctx context.Context, stmt string, fn func(ctx context.Context) error) error {
	release, err := db.admit()
	if err != nil {
		metrics.DBStatementsTotal.WithLabelValues(stmt, metrics.Fail).Inc()
		return err
	}
	defer release()

	err = db.policy.Do(ctx, stmt, fn)
	outcome := metrics.Ok
	if err != nil {
		outcome = metrics.Fail
		logger.From(db.log, ctx).Debug().Str("stmt", stmt).Err(err).Msg("statement failed")
	}
	metrics.DBStatementsTotal.WithLabelValues(stmt, outcome).Inc()
	return err
}

// QueryMany runs a read and returns every row; the whole read is one attempt
func (db *DB) QueryMany(ctx context.Context, sql string, args ...any) ([]Record, error) {
	var out []Record
	err := db.run(ctx, "query_many", func(ctx context.Context) error {
		recs, err := collect(ctx, db.c, scanRecord, sql, args...)
		out = recs
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueryOne returns the first row, or nil with no error when there is none
func (db *DB) QueryOne(ctx context.Context, sql string, args ...any) (Record, error) {
	var out Record
	err := db.run(ctx, "query_one", func(ctx context.Context) error {
		out = nil
		rs, err := db.c.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rs.Close()
		if rs.Next() {
			if out, err = scanRecord(rs); err != nil {
				return err
			}
		}
		return rs.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Mutate runs an UPDATE or DELETE and returns the affected row count
func (db *DB) Mutate(ctx context.Context, sql string, args ...any) (int64, error) {
	var n int64
	err := db.run(ctx, "mutate", func(ctx context.Context) error {
		tag, err := db.c.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}

// Insert runs an INSERT and returns the generated key. A statement without a
// RETURNING clause gets "RETURNING id" appended.
func (db *DB) Insert(ctx context.Context, sql string, args ...any) (int64, error) {
	sql = withReturning(sql)
	var id int64
	err := db.run(ctx, "insert", func(ctx context.Context) error {
		return db.c.QueryRow(ctx, sql, args...).Scan(&id)
	})
	return id, err
}

func withReturning(sql string) string {
	s := strings.TrimRight(strings.TrimSpace(sql), "; \t\n")
	for _, f := range strings.Fields(s) {
		if strings.EqualFold(f, "returning") {
			return s
		}
	}
	return s + " RETURNING id"
}

// HealthCheck pings one pooled connection and fails if that takes longer than
// timeout (DefaultHealthTimeout when zero). It bypasses the gate and the retry policy.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = db.healthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- db.c.Ping(ctx) }()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if ctx.Err() == nil {
			return perr.Wrap(err, perr.ErrorCodeUnavailable, "db health check failed")
		}
	case <-ctx.Done():
	}
	return perr.Wrapf(ctx.Err(), perr.ErrorCodeUnavailable, "db health check exceeded %s", timeout)
}

// Ping satisfies Pinger for Store.Guard
func (db *DB) Ping(ctx context.Context) error { return db.HealthCheck(ctx, 0) }

// Read runs fn as one admitted statement under the retry policy. fn gets the
// single-attempt connection, so a fault surfacing mid-iteration (rows.Err)
// repeats the whole read. The typed helpers route through here when given a DB.
func (db *DB) Read(ctx context.Context, stmt string, fn func(ctx context.Context, q RowQuerier) error) error {
	return db.run(ctx, stmt, func(ctx context.Context) error { return fn(ctx, db.c) })
}

// RowQuerier over DB, so the typed helpers get admission and retry as well

func (db *DB) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	var out CommandTag
	err := db.run(ctx, "exec", func(ctx context.Context) error {
		tag, err := db.c.Exec(ctx, sql, args...)
		out = tag
		return err
	})
	return out, err
}

// Query retries opening the result set only; the admission slot is held until Close.
// Faults reported while iterating are the caller's; use Read to retry those too.
func (db *DB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	release, err := db.admit()
	if err != nil {
		return nil, err
	}
	var rs Rows
	err = db.policy.Do(ctx, "query", func(ctx context.Context) error {
		r, err := db.c.Query(ctx, sql, args...)
		rs = r
		return err
	})
	if err != nil {
		release()
		metrics.DBStatementsTotal.WithLabelValues("query", metrics.Fail).Inc()
		return nil, err
	}
	metrics.DBStatementsTotal.WithLabelValues("query", metrics.Ok).Inc()
	return &gatedRows{Rows: rs, release: release}, nil
}

// QueryRow defers the statement to Scan, which runs it with admission and retry
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return retryRow{db: db, ctx: ctx, sql: sql, args: args}
}

type retryRow struct {
	db   *DB
	ctx  context.Context
	sql  string
	args []any
}

func (r retryRow) Scan(dst ...any) error {
	return r.db.run(r.ctx, "query_row", func(ctx context.Context) error {
		return r.db.c.QueryRow(ctx, r.sql, r.args...).Scan(dst...)
	})
}

type gatedRows struct {
	Rows
	release func()
	closed  bool
}

func (g *gatedRows) Close() {
	g.Rows.Close()
	if !g.closed {
		g.closed = true
		g.release()
	}
}

// Close releases the pool
func (db *DB) Close() error {
	if db == nil || db.c == nil {
		return nil
	}
	if c, ok := db.c.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
