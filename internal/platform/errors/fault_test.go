package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyPostgres(t *testing.T) {
	cases := map[string]Fault{
		"40P01": FaultDeadlock,
		"40001": FaultDeadlock,
		"55P03": FaultLockWaitTimeout,
		"53300": FaultTooManyConnections,
		"57014": FaultTimeout,
		"57P01": FaultServerShutdown,
		"57P03": FaultServerShutdown,
		"08006": FaultConnectionLost,
		"08001": FaultHandshake,
		"23505": FaultNone,
		"42601": FaultNone,
	}
	for code, want := range cases {
		err := fmt.Errorf("exec: %w", pg(code, "", ""))
		if got := Classify(err); got != want {
			t.Fatalf("Classify(%s) = %q, want %q", code, got, want)
		}
	}
}

func TestClassifyNetwork(t *testing.T) {
	reset := &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}
	pipe := &net.OpError{Op: "write", Net: "tcp", Err: os.NewSyscallError("write", syscall.EPIPE)}
	cases := []struct {
		name string
		err  error
		want Fault
	}{
		{"reset", reset, FaultConnectionReset},
		{"pipe", pipe, FaultBrokenPipe},
		{"eof", fmt.Errorf("read: %w", io.EOF), FaultConnectionLost},
		{"unexpected eof", io.ErrUnexpectedEOF, FaultConnectionLost},
		{"dns temporary", &net.DNSError{Err: "server misbehaving", IsTemporary: true}, FaultDNSRetry},
		{"dns permanent", &net.DNSError{Err: "no such host", IsNotFound: true}, FaultNone},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), FaultTimeout},
		{"plain", stderrs.New("syntax error"), FaultNone},
		{"nil", nil, FaultNone},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.err); got != c.want {
				t.Fatalf("Classify = %q, want %q", got, c.want)
			}
		})
	}
}

func TestClassifyIgnoresLocalCancellation(t *testing.T) {
	if got := Classify(context.Canceled); got != FaultNone {
		t.Fatalf("canceled classified as %q", got)
	}
	if got := Classify(fmt.Errorf("query: %w", context.DeadlineExceeded)); got != FaultNone {
		t.Fatalf("deadline classified as %q", got)
	}
}

func TestExplicitFaultWins(t *testing.T) {
	err := WithFault(pg("23505", "", ""), FaultDeadlock)
	if got := Classify(err); got != FaultDeadlock {
		t.Fatalf("explicit fault ignored: %q", got)
	}
	if !IsDuplicateKey(err) {
		t.Fatalf("WithFault should keep the cause reachable")
	}
	if WithFault(nil, FaultTimeout) != nil {
		t.Fatalf("WithFault(nil) should be nil")
	}
	nf := NewFault(FaultBrokenPipe, "write: broken pipe")
	if nf.Error() != "write: broken pipe" || Classify(nf) != FaultBrokenPipe {
		t.Fatalf("NewFault mismatch: %v", nf)
	}
}

func TestTransientFaultsAreDistinct(t *testing.T) {
	seen := map[Fault]bool{}
	for _, f := range TransientFaults {
		if f == FaultNone || seen[f] {
			t.Fatalf("bad transient fault %q", f)
		}
		seen[f] = true
	}
	if len(seen) != 10 {
		t.Fatalf("expected 10 recoverable faults, got %d", len(seen))
	}
}
