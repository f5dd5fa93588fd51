package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/makt28/netcanary/internal/history"
)

// RouterOptions are the dependencies of the status endpoint. Auth may be nil.
type RouterOptions struct {
	History  *history.Store
	Gatherer prometheus.Gatherer
	Auth     *BasicAuth
	Clock    clockwork.Clock
	Started  time.Time
}

// NewRouter sets up all routes and returns the http.Handler.
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	handlers := NewHandlers(opts.History)
	health := NewHealthHandler(opts.History, opts.Clock, opts.Started)

	// Public routes
	r.Get("/healthz", health.ServeHTTP)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(opts.Auth))

		r.Get("/api/channels", handlers.APIChannels)
		r.Get("/api/channels/{name}", handlers.APIChannelDetail)
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	})

	return r
}

// Serve runs the status server on addr until ctx is cancelled, then shuts
// it down within 5 seconds.
func Serve(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, handler, log)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("status endpoint listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("status endpoint forced shutdown", "error", err)
		return err
	}
	log.Info("status endpoint stopped")
	return nil
}
