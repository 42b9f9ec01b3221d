package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/Jack4Code/pipeline"
)

// ErrPanic is wrapped by the error Recover returns for a panicking chain.
var ErrPanic = errors.New("middleware: handler panicked")

// RecoverConfig is empty; Recover takes no arguments.
type RecoverConfig struct{}

// Recover returns a unit that recovers from panics further down the chain.
// The panic is logged with its stack and returned as an error wrapping
// ErrPanic.
func Recover(logger *slog.Logger) pipeline.Middleware {
	return pipeline.MiddlewareFunc(func(ctx context.Context, r *http.Request, next pipeline.Handler) (resp pipeline.Response, retErr error) {
		defer func() {
			if p := recover(); p != nil {
				logger.ErrorContext(ctx, "handler panicked",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())),
				)
				resp = nil
				retErr = fmt.Errorf("%w: %s %s: %v", ErrPanic, r.Method, r.URL.Path, p)
			}
		}()
		return next.Handle(ctx, r)
	})
}
