package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Jack4Code/pipeline"
)

// RequestIDConfig configures RequestID.
type RequestIDConfig struct {
	// Header carrying the id in both directions. Defaults to X-Request-ID.
	Header string `mapstructure:"header"`
	// TrustIncoming keeps an id the client already sent.
	TrustIncoming bool `mapstructure:"trust_incoming"`
}

func (c *RequestIDConfig) ApplyDefaults() {
	if c.Header == "" {
		c.Header = "X-Request-ID"
	}
}

// RequestID returns a unit that tags each request with an id, stores it in
// the context (see GetRequestID) and echoes it in the response header.
func RequestID(cfg RequestIDConfig) pipeline.Middleware {
	cfg.ApplyDefaults()

	return pipeline.MiddlewareFunc(func(ctx context.Context, r *http.Request, next pipeline.Handler) (pipeline.Response, error) {
		id := ""
		if cfg.TrustIncoming {
			id = r.Header.Get(cfg.Header)
		}
		if id == "" {
			id = uuid.New().String()
		}

		resp, err := next.Handle(context.WithValue(ctx, requestIDKey, id), r)
		if err != nil {
			return nil, err
		}
		return withHeaders(resp, http.Header{http.CanonicalHeaderKey(cfg.Header): {id}}), nil
	})
}

// GetRequestID returns the id stored by RequestID.
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}
