// Package server runs an http.Handler with a health endpoint and graceful
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthPath is answered by Run itself, ahead of the wrapped handler.
const HealthPath = "/healthz"

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
)

// Params configures Run.
type Params struct {
	// Name identifies the service in health responses and logs.
	Name string

	// Handler serves every path except HealthPath.
	Handler http.Handler

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// ShutdownTimeout bounds the drain of in-flight requests.
	ShutdownTimeout time.Duration

	// DrainDelay is how long the health endpoint reports 503 before the
	// listener closes.
	DrainDelay time.Duration
}

// Run serves p.Handler on ln until ctx is done, then marks the service
// unhealthy, waits p.DrainDelay and drains in-flight requests. It returns nil
// after a clean shutdown.
func Run(ctx context.Context, p Params, ln net.Listener) error {
	if p.Handler == nil {
		return errors.New("server: handler required")
	}
	if ln == nil {
		return errors.New("server: listener required")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := p.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	var shuttingDown atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if shuttingDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"shutting_down","service":%q}`, p.Name)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q}`, p.Name)
	})
	mux.Handle("/", p.Handler)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: defaultReadTimeout,
		IdleTimeout:       defaultIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.InfoContext(ctx, "server.start", slog.String("service", p.Name), slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("server.shutdown.start", slog.String("service", p.Name))
		shuttingDown.Store(true)

		if p.DrainDelay > 0 {
			time.Sleep(p.DrainDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server.shutdown.fail", slog.String("err", err.Error()))
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server.shutdown.done", slog.String("service", p.Name))
		return nil
	})

	return g.Wait()
}
