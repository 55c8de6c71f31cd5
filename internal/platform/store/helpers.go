package store

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	perr "bazaar/internal/platform/errors"
)

// Record is one result row keyed by column name
type Record = map[string]any

// ExecOne runs a write and asserts exactly one row was affected
func ExecOne(ctx context.Context, q RowQuerier, sql string, args ...any) error {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if n := tag.RowsAffected(); n != 1 {
		return perr.Newf(perr.ErrorCodeDB, "expected exactly one row affected, got %d", n)
	}
	return nil
}

// Scalar reads the first column of the first row into T
func Scalar[T any](ctx context.Context, q RowQuerier, sql string, args ...any) (T, error) {
	var v T
	if err := q.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// One maps exactly one row with scan; no row is perr.ErrNotFound
func One[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) (T, error) {
	return single(ctx, q, func(rs Rows) (T, error) { return scan(rs) }, sql, args...)
}

// Many maps every row with scan
func Many[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) ([]T, error) {
	return collect(ctx, q, func(rs Rows) (T, error) { return scan(rs) }, sql, args...)
}

// Map returns exactly one row as a Record
func Map(ctx context.Context, q RowQuerier, sql string, args ...any) (Record, error) {
	return single(ctx, q, scanRecord, sql, args...)
}

// Maps returns all rows as Records
func Maps(ctx context.Context, q RowQuerier, sql string, args ...any) ([]Record, error) {
	return collect(ctx, q, scanRecord, sql, args...)
}

// StructByName maps exactly one row into T by `db` tag or case-insensitive field name
func StructByName[T any](ctx context.Context, q RowQuerier, sql string, args ...any) (T, error) {
	return single(ctx, q, scanStruct[T], sql, args...)
}

// StructsByName maps all rows into []T by `db` tag or case-insensitive field name
func StructsByName[T any](ctx context.Context, q RowQuerier, sql string, args ...any) ([]T, error) {
	return collect(ctx, q, scanStruct[T], sql, args...)
}

// reader runs a whole read as one retried attempt; *DB implements it
type reader interface {
	Read(ctx context.Context, stmt string, fn func(ctx context.Context, q RowQuerier) error) error
}

// single runs sql and scans its only row; zero rows is ErrNotFound, more than one is a DB error
func single[T any](ctx context.Context, q RowQuerier, scan func(Rows) (T, error), sql string, args ...any) (T, error) {
	r, ok := q.(reader)
	if !ok {
		return singleOnce(ctx, q, scan, sql, args...)
	}
	var out T
	err := r.Read(ctx, "query_single", func(ctx context.Context, q RowQuerier) error {
		var err error
		out, err = singleOnce(ctx, q, scan, sql, args...)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func singleOnce[T any](ctx context.Context, q RowQuerier, scan func(Rows) (T, error), sql string, args ...any) (T, error) {
	var zero T
	rs, err := q.Query(ctx, sql, args...)
	if err != nil {
		return zero, err
	}
	defer rs.Close()

	if !rs.Next() {
		if err := rs.Err(); err != nil {
			return zero, err
		}
		return zero, perr.ErrNotFound
	}
	item, err := scan(rs)
	if err != nil {
		return zero, err
	}
	if rs.Next() {
		return zero, perr.New(perr.ErrorCodeDB, "expected 1 row, got more")
	}
	return item, rs.Err()
}

// collect runs sql and scans every row; an empty result is a nil slice and no error
func collect[T any](ctx context.Context, q RowQuerier, scan func(Rows) (T, error), sql string, args ...any) ([]T, error) {
	r, ok := q.(reader)
	if !ok {
		return collectOnce(ctx, q, scan, sql, args...)
	}
	var out []T
	err := r.Read(ctx, "query_collect", func(ctx context.Context, q RowQuerier) error {
		var err error
		out, err = collectOnce(ctx, q, scan, sql, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func collectOnce[T any](ctx context.Context, q RowQuerier, scan func(Rows) (T, error), sql string, args ...any) ([]T, error) {
	rs, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []T
	for rs.Next() {
		item, err := scan(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rs.Err()
}

// scanRecord reads the current row into a Record using the column names
func scanRecord(rs Rows) (Record, error) {
	cols := rs.Columns()
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rs.Scan(ptrs...); err != nil {
		return nil, err
	}
	rec := make(Record, len(cols))
	for i, c := range cols {
		rec[c] = deref(vals[i])
	}
	return rec, nil
}

func deref(v any) any {
	if t, ok := v.(*time.Time); ok {
		if t == nil {
			return nil
		}
		return *t
	}
	return v
}

// scanStruct reads the current row into T through a Record
func scanStruct[T any](rs Rows) (T, error) {
	var out T
	rec, err := scanRecord(rs)
	if err != nil {
		return out, err
	}
	rv := reflect.ValueOf(&out).Elem()
	idx := fieldIndex(rv.Type())
	for name, val := range rec {
		if i, ok := idx[strings.ToLower(name)]; ok {
			assign(rv.Field(i), val)
		}
	}
	return out, nil
}

var fieldIndexes sync.Map // reflect.Type -> map[string]int

// fieldIndex maps lowercased `db` tag (or field name) to field index for exported fields
func fieldIndex(t reflect.Type) map[string]int {
	if v, ok := fieldIndexes.Load(t); ok {
		return v.(map[string]int)
	}
	out := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := f.Tag.Get("db")
		if key == "-" {
			continue
		}
		if key == "" {
			key = f.Name
		}
		out[strings.ToLower(key)] = i
	}
	fieldIndexes.Store(t, out)
	return out
}

// assign sets dst from src when the types are assignable, convertible, or a string/[]byte pair;
// anything else leaves dst untouched
func assign(dst reflect.Value, src any) {
	if !dst.CanSet() {
		return
	}
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return
	}
	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(dst.Type()):
		dst.Set(sv)
	case sv.Kind() == reflect.Slice && sv.Type().Elem().Kind() == reflect.Uint8 && dst.Kind() == reflect.String:
		dst.SetString(string(sv.Bytes()))
	case sv.Kind() == reflect.String && dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8:
		dst.SetBytes([]byte(sv.String()))
	case sv.Type().ConvertibleTo(dst.Type()) && sv.Kind() != reflect.String && dst.Kind() != reflect.String:
		dst.Set(sv.Convert(dst.Type()))
	}
}
