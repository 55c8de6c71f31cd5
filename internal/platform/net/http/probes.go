package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker is the pool liveness surface (store.DB)
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Guarder is the aggregate readiness surface (store.Store)
type Guarder interface {
	Guard(ctx context.Context) error
}

// Probes mounts /healthz, /readyz and /metrics
// A nil DB makes /healthz report ok with db=disabled
type Probes struct {
	DB            HealthChecker
	Ready         Guarder
	HealthTimeout time.Duration
}

// Mount registers the probe routes on m
func (p Probes) Mount(m *chi.Mux) {
	m.Get("/healthz", p.healthz)
	m.Get("/readyz", p.readyz)
	m.Handle("/metrics", promhttp.Handler())
}

func (p Probes) healthz(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if p.DB == nil {
		RespondOK(w, r, map[string]string{"db": "disabled"})
		return
	}
	start := time.Now()
	if err := p.DB.HealthCheck(r.Context(), p.HealthTimeout); err != nil {
		RespondError(w, r, err)
		return
	}
	RespondOK(w, r, map[string]any{"db": "ok", "elapsed_ms": time.Since(start).Milliseconds()})
}

func (p Probes) readyz(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if p.Ready == nil {
		RespondOK(w, r, map[string]string{"ready": "ok"})
		return
	}
	if err := p.Ready.Guard(r.Context()); err != nil {
		RespondError(w, r, err)
		return
	}
	RespondOK(w, r, map[string]string{"ready": "ok"})
}
