// Package server holds the HTTP plumbing shared by the users and recipes
// binaries: the middleware chain, probe and metrics endpoints, and graceful
// shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/welldanyogia/recetas/backend/internal/health"
	"github.com/welldanyogia/recetas/backend/internal/metrics"
	"github.com/welldanyogia/recetas/backend/internal/middleware"
)

const (
	// requestTimeout bounds a whole request, reading an upload body included.
	requestTimeout    = 2 * time.Minute
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// Options configures NewRouter.
type Options struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	Health         *health.Handler
}

// NewRouter returns a chi router with the common middleware chain and the
// /health and /metrics endpoints mounted.
func NewRouter(opts Options) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if opts.Health != nil {
		r.Get("/health", opts.Health.Health)
		r.Get("/health/ready", opts.Health.Readiness)
		r.Get("/health/live", opts.Health.Liveness)
	}
	r.Handle("/metrics", metrics.Handler())

	return r
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Run serves handler on addr until SIGINT or SIGTERM, then marks the
// service unready and drains in-flight requests. Cleanup functions run
// after the server has stopped, in order.
func Run(addr string, handler http.Handler, probes *health.Handler, log *slog.Logger, cleanup ...func()) error {
	srv := newHTTPServer(addr, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case sig := <-quit:
		log.Info("shutting down server", "signal", sig.String())
	}

	if probes != nil {
		probes.SetReady(false)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)

	for _, fn := range cleanup {
		fn()
	}

	if err != nil {
		return err
	}
	log.Info("server exited")
	return nil
}
