package pipeline

import (
	"context"
	"log/slog"
	"net/http"
)

// Dispatcher runs the registered middleware as a chain of responsibility
// that ends in a fallback handler. Registration and alias methods come from
// the embedded Registry.
//
// Handle may be called from several goroutines at once as long as nothing
// registers in the meantime.
type Dispatcher struct {
	*Registry

	fallback Handler
	resolver Resolver
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for resolution failures. A nil logger
// keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher returns a dispatcher with no middleware. fallback answers
// every request that no middleware intercepts; when it is nil, a dispatch
// reaching the end of the chain fails with ErrNoFallback. A nil resolver
// resolves instances and funcs and rejects every identifier.
func NewDispatcher(fallback Handler, resolver Resolver, opts ...Option) *Dispatcher {
	if resolver == nil {
		resolver = NewFactoryResolver(nil)
	}
	d := &Dispatcher{
		Registry: NewRegistry(),
		fallback: fallback,
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reset returns a dispatcher with the same fallback, resolver, logger and
// aliases but no middleware.
func (d *Dispatcher) Reset() *Dispatcher {
	return &Dispatcher{
		Registry: d.Registry.Reset(),
		fallback: d.fallback,
		resolver: d.resolver,
		logger:   d.logger,
	}
}

// Handle dispatches r through the middleware registered at call time.
// Each entry is resolved only when the chain reaches it, so nothing past a
// unit that answers on its own is ever constructed. A resolution error
// stops the dispatch and is returned as is.
func (d *Dispatcher) Handle(ctx context.Context, r *http.Request) (Response, error) {
	c := &cursor{
		entries:  d.Snapshot(),
		fallback: d.fallback,
		resolver: d.resolver,
		logger:   d.logger,
	}
	return c.Handle(ctx, r)
}

// cursor walks one dispatch's snapshot. It is the next handler passed to
// every unit.
type cursor struct {
	entries  []Entry
	pos      int
	fallback Handler
	resolver Resolver
	logger   *slog.Logger
}

func (c *cursor) Handle(ctx context.Context, r *http.Request) (Response, error) {
	if c.pos >= len(c.entries) {
		if c.fallback == nil {
			return nil, ErrNoFallback
		}
		return c.fallback.Handle(ctx, r)
	}

	entry := c.entries[c.pos]
	c.pos++

	mw, err := c.resolver.Resolve(entry.Descriptor)
	if err != nil {
		c.logger.DebugContext(ctx, "middleware resolution failed",
			slog.String("middleware", entry.Descriptor.String()),
			slog.Int("priority", entry.Priority),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return mw.Process(ctx, r, c)
}
