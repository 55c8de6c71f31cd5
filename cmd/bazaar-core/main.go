package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"bazaar/internal/platform/config"
	"bazaar/internal/platform/logger"
	phttp "bazaar/internal/platform/net/http"
	"bazaar/internal/platform/store"
)

func main() {
	logger.Init(logger.FromEnv())
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := config.New()
	cfg := store.ConfigFromEnv(root)

	st, err := store.Open(ctx, cfg, store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	probes := phttp.Probes{Ready: st, HealthTimeout: cfg.DB.HealthTimeout}
	if st.DB != nil {
		probes.DB = st.DB
	}
	srv := phttp.NewServer(root, probes.Mount)

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	select {
	case <-ctx.Done():
		l.Info().Msg("shutting down")
	case err := <-errc:
		if err != nil {
			l.Error().Err(err).Msg("ops server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("ops server shutdown")
	}
}
