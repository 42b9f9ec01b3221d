package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jack4Code/pipeline"
	"github.com/Jack4Code/pipeline/container"
)

// Canonical identifiers of the built-in units.
const (
	IDRequireAuth = "middleware.RequireAuth"
	IDBasicAuth   = "middleware.BasicAuth"
	IDCORS        = "middleware.CORS"
	IDRequestID   = "middleware.RequestID"
	IDLogging     = "middleware.Logging"
	IDRecover     = "middleware.Recover"
	IDTimeout     = "middleware.Timeout"
	IDTracing     = "middleware.Tracing"
	IDMetrics     = "middleware.Metrics"
	IDRateLimit   = "middleware.RateLimit"
	IDMultipart   = "middleware.Multipart"
)

// Aliases returns the default short names of the built-in units.
func Aliases() map[string]string {
	return map[string]string{
		"auth":       IDRequireAuth,
		"basic_auth": IDBasicAuth,
		"cors":       IDCORS,
		"request_id": IDRequestID,
		"logging":    IDLogging,
		"recover":    IDRecover,
		"timeout":    IDTimeout,
		"tracing":    IDTracing,
		"metrics":    IDMetrics,
		"rate_limit": IDRateLimit,
		"multipart":  IDMultipart,
	}
}

type registerOptions struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	tracer     trace.Tracer
}

// RegisterOption configures Register.
type RegisterOption func(*registerOptions)

// WithLogger sets the logger handed to the logging, recover and timeout units.
func WithLogger(logger *slog.Logger) RegisterOption {
	return func(o *registerOptions) {
		o.logger = logger
	}
}

// WithRegisterer sets where the metrics unit registers its collectors.
// Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) RegisterOption {
	return func(o *registerOptions) {
		o.registerer = reg
	}
}

// WithTracer sets the tracer used by the tracing unit. Defaults to the
// global tracer provider.
func WithTracer(tracer trace.Tracer) RegisterOption {
	return func(o *registerOptions) {
		o.tracer = tracer
	}
}

// Register adds a factory for every built-in unit to c under its canonical
// identifier. Units are rebuilt on each dispatch; state that must outlive a
// request (metric collectors, rate limiter buckets) is created here once and
// shared by every unit the factories build.
func Register(c *container.Container, opts ...RegisterOption) error {
	o := registerOptions{
		logger:     slog.Default(),
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	metrics, err := newHTTPMetrics(o.registerer)
	if err != nil {
		return err
	}
	limiters := newLimiterStore()

	factories := map[string]container.Factory{
		IDRequireAuth: container.Provide(func(cfg AuthConfig) (pipeline.Middleware, error) {
			return RequireAuth(cfg.Secret), nil
		}),
		IDBasicAuth: container.Provide(func(cfg BasicAuthConfig) (pipeline.Middleware, error) {
			return BasicAuth(cfg), nil
		}),
		IDCORS: container.Provide(func(cfg CORSConfig) (pipeline.Middleware, error) {
			return CORS(cfg), nil
		}),
		IDRequestID: container.Provide(func(cfg RequestIDConfig) (pipeline.Middleware, error) {
			return RequestID(cfg), nil
		}),
		IDLogging: container.Provide(func(cfg LoggingConfig) (pipeline.Middleware, error) {
			return Logging(o.logger, cfg), nil
		}),
		IDRecover: container.Provide(func(cfg RecoverConfig) (pipeline.Middleware, error) {
			return Recover(o.logger), nil
		}),
		IDTimeout: container.Provide(func(cfg TimeoutConfig) (pipeline.Middleware, error) {
			return Timeout(o.logger, cfg.Duration), nil
		}),
		IDTracing: container.Provide(func(cfg TracingConfig) (pipeline.Middleware, error) {
			return TracingWithTracer(o.tracer, cfg), nil
		}),
		IDMetrics: container.Provide(func(cfg MetricsConfig) (pipeline.Middleware, error) {
			return metrics.middleware(cfg), nil
		}),
		IDRateLimit: container.Provide(func(cfg RateLimitConfig) (pipeline.Middleware, error) {
			return limiters.middleware(cfg), nil
		}),
		IDMultipart: container.Provide(func(cfg MultipartConfig) (pipeline.Middleware, error) {
			return Multipart(cfg), nil
		}),
	}

	for name, f := range factories {
		if err := c.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}

// headerResponse adds headers to a response it does not own.
type headerResponse struct {
	pipeline.Response
	header http.Header
}

func withHeaders(resp pipeline.Response, h http.Header) pipeline.Response {
	if len(h) == 0 {
		return resp
	}
	if buf, ok := resp.(*pipeline.BufferedResponse); ok {
		if buf.Header == nil {
			buf.Header = http.Header{}
		}
		for k, vs := range h {
			buf.Header[k] = append([]string(nil), vs...)
		}
		return buf
	}
	return headerResponse{Response: resp, header: h}
}

func (r headerResponse) Write(ctx context.Context, w http.ResponseWriter) error {
	for k, vs := range r.header {
		w.Header()[k] = append([]string(nil), vs...)
	}
	return r.Response.Write(ctx, w)
}

func (r headerResponse) Status() int {
	return pipeline.StatusOf(r.Response)
}

func unauthorized(msg string) pipeline.Response {
	return pipeline.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
}
