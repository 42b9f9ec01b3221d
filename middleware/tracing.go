package middleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jack4Code/pipeline"
)

// tracerName is the instrumentation scope name for pipeline tracing.
const tracerName = "github.com/Jack4Code/pipeline"

// TracingConfig configures Tracing.
type TracingConfig struct {
	SpanName string `mapstructure:"span_name"`
}

func (c *TracingConfig) ApplyDefaults() {
	if c.SpanName == "" {
		c.SpanName = "pipeline.request"
	}
}

// Tracing returns a unit that wraps the rest of the chain in a span from
// the global tracer provider. With no provider configured it is a
// pass-through.
func Tracing(cfg TracingConfig) pipeline.Middleware {
	return TracingWithTracer(otel.Tracer(tracerName), cfg)
}

// TracingWithTracer is Tracing with an explicit tracer.
//
// Span attributes: http.request.method, url.path and, once answered,
// http.response.status_code. Errors and 5xx answers mark the span as failed.
func TracingWithTracer(tracer trace.Tracer, cfg TracingConfig) pipeline.Middleware {
	cfg.ApplyDefaults()

	return pipeline.MiddlewareFunc(func(ctx context.Context, r *http.Request, next pipeline.Handler) (pipeline.Response, error) {
		ctx, span := tracer.Start(ctx, cfg.SpanName,
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		resp, err := next.Handle(ctx, r)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		status := pipeline.StatusOf(resp)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return resp, nil
	})
}
