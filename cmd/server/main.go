package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/ledger"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/service"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/storage/backend"
	"github.com/mmynk/settleup/pkg/api"
	"github.com/mmynk/settleup/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Storage initialized", "driver", cfg.Storage.Driver, "database", backend.Describe(cfg.Storage))

	m := metrics.New()
	l := ledger.New(store, ledger.WithPolicy(cfg.Policy), ledger.WithMetrics(m))
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newHandler(store, l, jwtManager, m, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting",
			"address", srv.Addr,
			"url", fmt.Sprintf("http://localhost%s", srv.Addr),
			"policy", cfg.Policy.String(),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}
}

// newHandler registers the Connect services and /metrics, and wraps the mux
// with request logging, CORS and h2c.
func newHandler(store storage.Store, l *ledger.Ledger, jwtManager *auth.JWTManager, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	authenticator := auth.NewPasswordAuthenticator(store)

	// Register and Login must work without a token.
	public := connect.WithInterceptors(
		middleware.OptionalAuth(jwtManager),
		middleware.LoggingInterceptor(logger),
		middleware.MetricsInterceptor(m),
	)
	protected := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager),
		middleware.LoggingInterceptor(logger),
		middleware.MetricsInterceptor(m),
	)

	mux := http.NewServeMux()
	mux.Handle(api.NewAuthServiceHandler(service.NewAuthService(authenticator, jwtManager, store, logger), public))
	mux.Handle(api.NewGroupServiceHandler(service.NewGroupService(store, l), protected))
	mux.Handle(api.NewExpenseServiceHandler(service.NewExpenseService(store, l), protected))
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Add logging and CORS middleware
	loggedHandler := loggingMiddleware(logger, corsMiddleware(mux))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	return h2c.NewHandler(loggedHandler, &http2.Server{})
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
