package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Jack4Code/pipeline/config"
)

// App interface
type App interface {
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
	Routes() []Route
}

// Route represents an HTTP route. Handler is often a *Dispatcher.
type Route struct {
	Method     string
	Path       string
	Handler    Handler
	Middleware []Middleware // Optional per-route middleware, see Chain
}

// HTTPHandler adapts h to net/http. An error from h is logged and answered
// with a 500 JSON body; it never reaches the client verbatim.
func HTTPHandler(h Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		resp, err := h.Handle(ctx, req)
		if err != nil {
			logger.ErrorContext(ctx, "request failed",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("error", err.Error()),
			)
			resp = Error(map[string]string{"error": "internal server error"})
		}
		if resp == nil {
			resp = Error(map[string]string{"error": "no response"})
		}

		if err := resp.Write(ctx, w); err != nil {
			logger.ErrorContext(ctx, "writing response failed", slog.String("error", err.Error()))
		}
	})
}

// NewRouter registers routes on a gorilla/mux router.
func NewRouter(routes []Route, logger *slog.Logger) *mux.Router {
	router := mux.NewRouter()
	for _, route := range routes {
		handler := route.Handler
		if len(route.Middleware) > 0 {
			handler = Chain(handler, route.Middleware...)
		}
		router.Handle(route.Path, HTTPHandler(handler, logger)).Methods(route.Method)
	}
	return router
}

// Run starts the app and serves its routes until SIGINT or SIGTERM.
//
// The health server (/health, /ready) starts before OnStart so orchestrators
// can see the process is alive. When cfg.MetricsPort is set, Prometheus
// metrics are served on /metrics there.
func Run(app App, cfg config.BaseConfig) error {
	ctx := context.Background()
	logger := NewLogger(cfg.LogLevel, os.Stderr)

	healthStatus := newHealthStatus()
	healthServer := startServer(logger, "health", cfg.GetHealthPort(), newHealthMux(healthStatus))

	var metricsServer *http.Server
	if port := cfg.GetMetricsPort(); port != 0 {
		m := http.NewServeMux()
		m.Handle("/metrics", promhttp.Handler())
		metricsServer = startServer(logger, "metrics", port, m)
	}

	if err := app.OnStart(ctx); err != nil {
		return fmt.Errorf("failed to start app: %w", err)
	}
	healthStatus.SetHealthy(true)

	var server *http.Server
	if routes := app.Routes(); len(routes) > 0 {
		server = startServer(logger, "http", cfg.GetHTTPPort(), NewRouter(routes, logger))
	} else {
		logger.Info("no HTTP routes, running in background mode")
	}
	healthStatus.SetReady(true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	healthStatus.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, s := range []*http.Server{server, metricsServer, healthServer} {
		if s == nil {
			continue
		}
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", slog.String("addr", s.Addr), slog.String("error", err.Error()))
		}
	}

	if err := app.OnStop(ctx); err != nil {
		logger.Error("error during OnStop", slog.String("error", err.Error()))
	}

	logger.Info("servers stopped")
	return nil
}

func startServer(logger *slog.Logger, name string, port int, h http.Handler) *http.Server {
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("server", name), slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("server", name), slog.String("error", err.Error()))
		}
	}()

	return server
}
