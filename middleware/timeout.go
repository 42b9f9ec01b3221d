package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Jack4Code/pipeline"
)

// TimeoutConfig configures Timeout.
type TimeoutConfig struct {
	Duration time.Duration `mapstructure:"duration"`
}

func (c *TimeoutConfig) ApplyDefaults() {
	if c.Duration == 0 {
		c.Duration = 30 * time.Second
	}
}

func (c *TimeoutConfig) Validate() error {
	if c.Duration < 0 {
		return errors.New("duration must not be negative")
	}
	return nil
}

// Timeout returns a unit that puts a deadline on the context handed to the
// rest of the chain. A chain that gives up with context.DeadlineExceeded is
// answered with 504.
func Timeout(logger *slog.Logger, d time.Duration) pipeline.Middleware {
	return pipeline.MiddlewareFunc(func(ctx context.Context, r *http.Request, next pipeline.Handler) (pipeline.Response, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		resp, err := next.Handle(ctx, r)
		if errors.Is(err, context.DeadlineExceeded) {
			logger.WarnContext(ctx, "request timed out",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("timeout", d),
			)
			return pipeline.JSON(http.StatusGatewayTimeout, map[string]string{
				"error": "request timed out",
			}), nil
		}
		return resp, err
	})
}
