// Package http is the transport layer: router, middleware, response
// helpers and server lifecycle.
package http

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	credctrl "github.com/dropDatabas3/credstart/internal/http/controllers/credential"
	healthctrl "github.com/dropDatabas3/credstart/internal/http/controllers/health"
	"github.com/dropDatabas3/credstart/internal/observability/logger"
)

// RouterDeps are the wired controllers and middleware inputs.
type RouterDeps struct {
	Credential *credctrl.Controller
	Health     *healthctrl.Controller

	CORSAllowedOrigins []string
}

// NewRouter assembles the route tree.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID, WithRecovery, WithMetrics, WithAccessLog)

	r.Post("/async/credential", deps.Credential.Start)
	r.Get("/readyz", deps.Health.Ready)
	r.Method(http.MethodGet, "/metrics", MetricsHandler())

	if len(deps.CORSAllowedOrigins) > 0 {
		return WithCORS(r, deps.CORSAllowedOrigins)
	}
	return r
}

// ServerConfig bounds the listener.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Run serves handler until the context is cancelled or SIGINT/SIGTERM
// arrives, then shuts down gracefully.
func Run(ctx context.Context, cfg ServerConfig, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.L().Info("server listening", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
