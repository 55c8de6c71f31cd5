package store

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

type cmdTag int64

func (c cmdTag) String() string      { return "UPDATE" }
func (c cmdTag) RowsAffected() int64 { return int64(c) }

// fakeRows is an in-memory result set
type fakeRows struct {
	cols   []string
	data   [][]any
	idx    int
	err    error // returned by Err once iteration stops
	closed bool
}

func newRows(cols []string, data ...[]any) *fakeRows {
	return &fakeRows{cols: cols, data: data, idx: -1}
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Err() error        { return r.err }
func (r *fakeRows) Close()            { r.closed = true }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.data) {
		return errors.New("scan out of bounds")
	}
	row := r.data[r.idx]
	if len(dest) != len(row) {
		return errors.New("dest len mismatch")
	}
	for i := range dest {
		dv := reflect.ValueOf(dest[i]).Elem()
		if row[i] == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		sv := reflect.ValueOf(row[i])
		if !sv.Type().AssignableTo(dv.Type()) {
			return errors.New("scan type mismatch")
		}
		dv.Set(sv)
	}
	return nil
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// fakeConn scripts single attempts: errs are returned in order by each call
// before falling through to the canned results
type fakeConn struct {
	mu sync.Mutex

	errs  []error
	calls int
	sqls  []string

	tag  int64
	rows func() *fakeRows
	id   int64

	pingErr   error
	pingDelay chan struct{}
	closed    bool
}

func (f *fakeConn) next(sql string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sqls = append(f.sqls, sql)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeConn) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeConn) Exec(_ context.Context, sql string, _ ...any) (CommandTag, error) {
	if err := f.next(sql); err != nil {
		return cmdTag(0), err
	}
	return cmdTag(f.tag), nil
}

func (f *fakeConn) Query(_ context.Context, sql string, _ ...any) (Rows, error) {
	if err := f.next(sql); err != nil {
		return nil, err
	}
	if f.rows == nil {
		return newRows(nil), nil
	}
	return f.rows(), nil
}

func (f *fakeConn) QueryRow(_ context.Context, sql string, _ ...any) Row {
	err := f.next(sql)
	return scanFunc(func(dest ...any) error {
		if err != nil {
			return err
		}
		if p, ok := dest[0].(*int64); ok {
			*p = f.id
		}
		return nil
	})
}

func (f *fakeConn) Ping(ctx context.Context) error {
	if f.pingDelay != nil {
		select {
		case <-f.pingDelay:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.pingErr
}

func (f *fakeConn) Close() error { f.closed = true; return nil }

func reflectTypeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func reflectValueOf(p any) reflect.Value { return reflect.ValueOf(p).Elem() }
