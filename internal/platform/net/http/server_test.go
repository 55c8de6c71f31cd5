package http_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bazaar/internal/platform/config"
	phttp "bazaar/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

func TestNewServer_DefaultAddr(t *testing.T) {
	t.Setenv("OPS_ADDR", "")
	srv := phttp.NewServer(config.New())
	if srv.Addr() != phttp.DefaultAddr {
		t.Fatalf("addr %q", srv.Addr())
	}
}

func TestNewServer_AddrFromEnv(t *testing.T) {
	t.Setenv("OPS_ADDR", ":12345")
	if got := phttp.NewServer(config.New()).Addr(); got != ":12345" {
		t.Fatalf("addr %q", got)
	}
}

func TestNewServer_OptsMountRoutesBehindMiddleware(t *testing.T) {
	srv := phttp.NewServer(config.New(), func(m *chi.Mux) {
		m.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "pong") })
		m.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	})

	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("ping: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("panic not recovered: %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id middleware not installed")
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	srv := phttp.NewServer(config.New(), func(m *chi.Mux) {
		m.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "pong") })
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "pong" {
		t.Fatalf("body %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not return after shutdown")
	}
}

func TestServer_Run_ReturnsListenError(t *testing.T) {
	t.Setenv("OPS_ADDR", "127.0.0.1:abc")
	if err := phttp.NewServer(config.New()).Run(context.Background()); err == nil {
		t.Fatalf("expected listen error")
	}
}
