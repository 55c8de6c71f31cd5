// Package retry wraps single statement attempts with bounded exponential backoff
//
// Only the fault classification of an error decides whether it is retried.
// Each call to Do runs its own sequence; there is no state shared between
// callers and no circuit breaker, so a sustained outage costs every caller its
// full attempt budget.
package retry

import (
	"context"
	"time"

	perr "bazaar/internal/platform/errors"
)

// Defaults for the statement retry policy
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 50 * time.Millisecond
	DefaultMaxDelay    = 1000 * time.Millisecond
)

// Event describes one scheduled retry, reported before the backoff sleep
type Event struct {
	Op      string
	Attempt int // the attempt that just failed, starting at 1
	Fault   perr.Fault
	Delay   time.Duration
	Err     error
}

// Policy is immutable once built; share one value across all callers
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	recoverable map[perr.Fault]struct{}
	classify    func(error) perr.Fault
	notify      func(Event)
}

// Option customizes a Policy during New
type Option func(*Policy)

// WithMaxAttempts bounds the number of attempts; values < 1 keep the default
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n >= 1 {
			p.maxAttempts = n
		}
	}
}

// WithDelays sets the base and capped delays; non-positive values keep the defaults
func WithDelays(base, max time.Duration) Option {
	return func(p *Policy) {
		if base > 0 {
			p.baseDelay = base
		}
		if max > 0 {
			p.maxDelay = max
		}
	}
}

// WithRecoverable replaces the recoverable fault set
func WithRecoverable(faults ...perr.Fault) Option {
	return func(p *Policy) {
		p.recoverable = make(map[perr.Fault]struct{}, len(faults))
		for _, f := range faults {
			if f != perr.FaultNone {
				p.recoverable[f] = struct{}{}
			}
		}
	}
}

// WithClassifier swaps the error classifier (perr.Classify by default)
func WithClassifier(fn func(error) perr.Fault) Option {
	return func(p *Policy) {
		if fn != nil {
			p.classify = fn
		}
	}
}

// WithNotify registers a hook that observes every scheduled retry
func WithNotify(fn func(Event)) Option {
	return func(p *Policy) { p.notify = fn }
}

// New builds a Policy from defaults plus options
func New(opts ...Option) Policy {
	p := Policy{
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
		classify:    perr.Classify,
	}
	WithRecoverable(perr.TransientFaults...)(&p)
	for _, o := range opts {
		o(&p)
	}
	if p.maxDelay < p.baseDelay {
		p.maxDelay = p.baseDelay
	}
	return p
}

// MaxAttempts reports the attempt budget
func (p Policy) MaxAttempts() int { return p.maxAttempts }

// Recoverable reports whether f is in the recoverable set
func (p Policy) Recoverable(f perr.Fault) bool {
	_, ok := p.recoverable[f]
	return ok
}

// Delay returns the sleep between attempt n and n+1: min(base * 2^(n-1), max)
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.baseDelay
	for i := 1; i < attempt; i++ {
		if d >= p.maxDelay {
			return p.maxDelay
		}
		d *= 2
	}
	if d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

// Do runs fn until it succeeds, fails with a fault outside the recoverable set,
// or the attempt budget is spent. The error returned is always fn's own error,
// unwrapped and unmasked. Cancelling ctx during a backoff stops the sequence
// and returns the last error from fn.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p.maxAttempts == 0 {
		p = New() // zero Policy behaves like the default
	}
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.maxAttempts {
			return err
		}
		fault := p.classify(err)
		if !p.Recoverable(fault) {
			return err
		}

		delay := p.Delay(attempt)
		if p.notify != nil {
			p.notify(Event{Op: op, Attempt: attempt, Fault: fault, Delay: delay, Err: err})
		}
		if !sleep(ctx, delay) {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
