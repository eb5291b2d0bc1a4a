package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/ducats/internal/middleware"
	"github.com/mmynk/ducats/pkg/api"
)

const shutdownTimeout = 10 * time.Second

// Router mounts the ledger service, /metrics and /health.
func (a *App) Router() http.Handler {
	interceptors := []connect.Interceptor{middleware.LoggingInterceptor(a.Logger)}
	if a.Tokens != nil {
		interceptors = append(interceptors, middleware.RequireAuth(a.Tokens))
	}
	path, handler := api.NewLedgerServiceHandler(a.Service(), connect.WithInterceptors(interceptors...))

	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Store.Ping(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}))
	r.Mount(path, handler)

	return r
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr: a.Config.Addr(),
		// h2c serves HTTP/2 without TLS, which Connect clients use.
		Handler:           h2c.NewHandler(a.Router(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("Connect server starting", "address", srv.Addr, "auth", a.Tokens != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
