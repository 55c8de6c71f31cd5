package store

import (
	"context"
	"time"

	perr "bazaar/internal/platform/errors"
	"bazaar/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgAdapter is the single-attempt RowQuerier over the pgx pool
// every call borrows a pooled connection for exactly one statement
type pgAdapter struct {
	p *pg.PG
}

func newPGAdapter(p *pg.PG) *pgAdapter { return &pgAdapter{p: p} }

// Ping acquires a connection, pings it and releases it
func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil || a.p == nil || a.p.Pool == nil {
		return perr.New(perr.ErrorCodeUnavailable, "pg: pool not open")
	}
	start := time.Now()
	conn, err := a.p.Pool.Acquire(ctx)
	if err != nil {
		a.emit(ctx, "ping", "", 0, start, err)
		return err
	}
	defer conn.Release()
	err = conn.Ping(ctx)
	a.emit(ctx, "ping", "", 0, start, err)
	return err
}

func (a *pgAdapter) Close() error { a.p.Close(); return nil }

func (a *pgAdapter) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := a.p.Pool.Exec(ctx, sql, args...)
	a.emit(ctx, "exec", sql, len(args), start, err)
	return tag{ct}, err
}

func (a *pgAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := a.p.Pool.Query(ctx, sql, args...)
	if err != nil {
		a.emit(ctx, "query", sql, len(args), start, err)
		return nil, err
	}
	// traced on Close so the timing covers the whole read
	return &rows{r: rs, done: func(err error) { a.emit(ctx, "query", sql, len(args), start, err) }}, nil
}

func (a *pgAdapter) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	r := a.p.Pool.QueryRow(ctx, sql, args...)
	return row{r: r, done: func(err error) { a.emit(ctx, "query_row", sql, len(args), start, err) }}
}

func (a *pgAdapter) emit(ctx context.Context, op, sql string, argc int, start time.Time, err error) {
	if a == nil || a.p == nil || a.p.Tracer == nil {
		return
	}
	elapsed := time.Since(start).Microseconds()
	a.p.Tracer.OnQuery(ctx, pg.QueryEvent{
		Op:        op,
		SQL:       sql,
		ArgCount:  argc,
		ElapsedUS: elapsed,
		Err:       err,
		Slow:      a.p.SlowMs > 0 && elapsed >= int64(a.p.SlowMs)*1000,
	})
}

// pgx -> Row/Rows/CommandTag

type row struct {
	r    pgx.Row
	done func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.done != nil {
		x.done(err)
	}
	return err
}

type rows struct {
	r      pgx.Rows
	done   func(error)
	closed bool
}

func (x *rows) Next() bool            { return x.r.Next() }
func (x *rows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x *rows) Err() error            { return x.r.Err() }

func (x *rows) Close() {
	x.r.Close()
	if !x.closed && x.done != nil {
		x.done(x.r.Err())
	}
	x.closed = true
}

func (x *rows) Columns() []string {
	fds := x.r.FieldDescriptions()
	out := make([]string, len(fds))
	for i := range fds {
		out[i] = fds[i].Name
	}
	return out
}

type tag struct{ t pgconn.CommandTag }

func (t tag) String() string      { return t.t.String() }
func (t tag) RowsAffected() int64 { return t.t.RowsAffected() }
