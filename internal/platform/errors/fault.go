package errors

import (
	"context"
	stderrs "errors"
	"io"
	"net"
	"syscall"
)

// Fault is the infrastructure classification of an error
// Retry decisions look only at the Fault, never at messages or concrete types
type Fault string

// Recoverable faults; FaultNone means the error was not classified and is terminal
const (
	FaultNone               Fault = ""
	FaultConnectionLost     Fault = "connection_lost"
	FaultConnectionReset    Fault = "connection_reset"
	FaultDeadlock           Fault = "deadlock"
	FaultLockWaitTimeout    Fault = "lock_wait_timeout"
	FaultTooManyConnections Fault = "too_many_connections"
	FaultTimeout            Fault = "timeout"
	FaultBrokenPipe         Fault = "broken_pipe"
	FaultHandshake          Fault = "handshake"
	FaultServerShutdown     Fault = "server_shutdown"
	FaultDNSRetry           Fault = "dns_retry"
)

// TransientFaults is the full recoverable set, in a stable order
var TransientFaults = []Fault{
	FaultConnectionLost,
	FaultConnectionReset,
	FaultDeadlock,
	FaultLockWaitTimeout,
	FaultTooManyConnections,
	FaultTimeout,
	FaultBrokenPipe,
	FaultHandshake,
	FaultServerShutdown,
	FaultDNSRetry,
}

// FaultError carries an explicit classification alongside its cause
type FaultError struct {
	Fault Fault
	Err   error
}

func (e *FaultError) Error() string {
	if e.Err == nil {
		return string(e.Fault)
	}
	return e.Err.Error()
}

func (e *FaultError) Unwrap() error { return e.Err }

// NewFault returns an error classified as f
func NewFault(f Fault, msg string) error {
	return &FaultError{Fault: f, Err: stderrs.New(msg)}
}

// WithFault tags err with an explicit classification; nil stays nil
func WithFault(err error, f Fault) error {
	if err == nil {
		return nil
	}
	return &FaultError{Fault: f, Err: err}
}

// Classify maps err onto the fault vocabulary
// Local cancellation is never classified so callers keep control over their own deadlines
func Classify(err error) Fault {
	if err == nil {
		return FaultNone
	}

	var fe *FaultError
	if stderrs.As(err, &fe) {
		return fe.Fault
	}

	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return FaultNone
	}

	if f, ok := pgFault(err); ok {
		return f
	}

	switch {
	case stderrs.Is(err, syscall.ECONNRESET):
		return FaultConnectionReset
	case stderrs.Is(err, syscall.EPIPE):
		return FaultBrokenPipe
	case stderrs.Is(err, io.EOF), stderrs.Is(err, io.ErrUnexpectedEOF), stderrs.Is(err, net.ErrClosed):
		return FaultConnectionLost
	}

	var dnsErr *net.DNSError
	if stderrs.As(err, &dnsErr) {
		if dnsErr.IsTemporary || dnsErr.IsTimeout {
			return FaultDNSRetry
		}
		return FaultNone
	}

	var netErr net.Error
	if stderrs.As(err, &netErr) && netErr.Timeout() {
		return FaultTimeout
	}

	return FaultNone
}
