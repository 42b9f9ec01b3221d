package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Jack4Code/pipeline"
)

// MetricsConfig configures the metrics unit.
type MetricsConfig struct {
	// Route is the value of the route label. Paths are not used as labels.
	Route string `mapstructure:"route"`
}

func (c *MetricsConfig) ApplyDefaults() {
	if c.Route == "" {
		c.Route = "default"
	}
}

// httpMetrics holds the collectors shared by every metrics unit built from
// one Register call.
//
// Collectors:
//   - pipeline_http_requests_total (counter): route, method, status
//   - pipeline_http_request_duration_seconds (histogram): route, method
type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) (*httpMetrics, error) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_http_requests_total",
			Help: "Total number of requests dispatched, by answer status.",
		},
		[]string{"route", "method", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_http_request_duration_seconds",
			Help:    "Time spent in the rest of the chain.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	var err error
	if requests, err = registerOrReuse(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = registerOrReuse(reg, duration); err != nil {
		return nil, err
	}
	return &httpMetrics{requests: requests, duration: duration}, nil
}

// registerOrReuse registers c, or returns the collector already registered
// under the same descriptor.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *httpMetrics) middleware(cfg MetricsConfig) pipeline.Middleware {
	cfg.ApplyDefaults()

	return pipeline.MiddlewareFunc(func(ctx context.Context, r *http.Request, next pipeline.Handler) (pipeline.Response, error) {
		start := time.Now()
		resp, err := next.Handle(ctx, r)
		m.duration.WithLabelValues(cfg.Route, r.Method).Observe(time.Since(start).Seconds())

		status := "error"
		if err == nil {
			status = strconv.Itoa(pipeline.StatusOf(resp))
		}
		m.requests.WithLabelValues(cfg.Route, r.Method, status).Inc()

		return resp, err
	})
}
