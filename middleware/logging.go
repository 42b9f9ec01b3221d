package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Jack4Code/pipeline"
)

// LoggingConfig configures Logging.
type LoggingConfig struct {
	// Level of the completion line: debug, info, warn or error.
	Level string `mapstructure:"level"`
}

func (c *LoggingConfig) level() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logging returns a unit that logs one line per request once the rest of
// the chain has answered. Failed requests are logged at error level.
func Logging(logger *slog.Logger, cfg LoggingConfig) pipeline.Middleware {
	level := cfg.level()

	return pipeline.MiddlewareFunc(func(ctx context.Context, r *http.Request, next pipeline.Handler) (pipeline.Response, error) {
		start := time.Now()
		resp, err := next.Handle(ctx, r)
		elapsed := time.Since(start)

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", elapsed),
		}
		if id, ok := GetRequestID(ctx); ok {
			attrs = append(attrs, slog.String("request_id", id))
		}

		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			return nil, err
		}

		attrs = append(attrs, slog.Int("status", pipeline.StatusOf(resp)))
		logger.LogAttrs(ctx, level, "request completed", attrs...)
		return resp, nil
	})
}
