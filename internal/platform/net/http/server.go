// Package http runs the operational listener: health, readiness and metrics
package http

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"time"

	"bazaar/internal/platform/config"
	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/net/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// DefaultAddr is where the ops listener binds when OPS_ADDR is unset
const DefaultAddr = ":9090"

// Server is a thin wrapper over chi + stdlib http.Server
type Server struct {
	addr string
	mux  *chi.Mux
	srv  *stdhttp.Server
}

// NewServer builds the ops server with request ids, panic recovery and access logs
// opts receive the *chi.Mux after the middleware stack so callers can mount routes
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	addr := cfg.MayString("OPS_ADDR", DefaultAddr)
	slow := cfg.MayDuration("OPS_SLOW_REQUEST", 500*time.Millisecond)

	m := chi.NewRouter()
	m.Use(chimw.RequestID)
	m.Use(middleware.RecoverJSON)
	m.Use(middleware.AccessLog(middleware.AccessLogOptions{Slow: slow}))
	for _, o := range opts {
		o(m)
	}
	return &Server{
		addr: addr,
		mux:  m,
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Mux exposes the router, mostly for tests
func (s *Server) Mux() *chi.Mux { return s.mux }

// Addr returns the configured listening address
func (s *Server) Addr() string { return s.addr }

// Run listens and serves until Shutdown; ErrServerClosed is not an error
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run over a caller supplied listener
func (s *Server) Serve(_ context.Context, ln net.Listener) error {
	logger.Named("http").Info().Str("addr", ln.Addr().String()).Msg("ops listening")
	err := s.srv.Serve(ln)
	if errors.Is(err, stdhttp.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
