package testkit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMustPanic(t *testing.T) {
	t.Parallel()
	MustPanic(t, func() { panic("boom") })
}

func TestMustNotPanic(t *testing.T) {
	t.Parallel()
	MustNotPanic(t, func() {})
}

func TestMustContain(t *testing.T) {
	t.Parallel()
	MustContain(t, "uploads/listings/1-a.jpg", "listings")
}

func TestEventually(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(5 * time.Millisecond)
			n.Add(1)
		}
	}()
	Eventually(t, time.Second, 2*time.Millisecond, func() bool { return n.Load() == 3 })
}

func TestLogBuffer_CountConcurrent(t *testing.T) {
	t.Parallel()

	var buf LogBuffer
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fmt.Fprintf(&buf, "{\"message\":\"retrying statement\",\"attempt\":%d}\n", i)
		}(i)
	}
	wg.Wait()
	fmt.Fprintln(&buf, `{"message":"other"}`)

	if got := buf.Count("retrying statement"); got != 20 {
		t.Fatalf("Count = %d, want 20", got)
	}
	if got := buf.Count("missing"); got != 0 {
		t.Fatalf("Count(missing) = %d", got)
	}
}
