package pg

import (
	"context"
	"strings"

	"bazaar/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one statement attempt as seen by the adapter
type QueryEvent struct {
	Op        string // exec, query, query_row, ping
	SQL       string
	ArgCount  int
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer observes statement attempts
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer returns a tracer that prints every statement when DB_LOG_SQL is on,
// independent of the process-wide root level. Bound parameters are counted,
// never printed.
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &zlTracer{log: ll}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(_ context.Context, ev QueryEvent) {
	evt := z.log.Info()
	if ev.Slow {
		evt = z.log.Warn()
	}

	evt.Str("op", ev.Op).
		Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Int("arg_count", ev.ArgCount).
		Err(ev.Err).
		Msg("pg statement")
}

// compact folds all whitespace runs into single spaces
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
