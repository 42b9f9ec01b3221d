package pipeline

import (
	"context"
	"net/http"
)

// Middleware is a processing unit. It receives the request and the rest of
// the chain as next, and may call next to proceed, skip it to answer on its
// own, or post-process the response next returns.
//
// next is meant to be called at most once per Process call.
type Middleware interface {
	Process(ctx context.Context, r *http.Request, next Handler) (Response, error)
}

// MiddlewareFunc adapts a plain function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, r *http.Request, next Handler) (Response, error)

func (f MiddlewareFunc) Process(ctx context.Context, r *http.Request, next Handler) (Response, error) {
	return f(ctx, r, next)
}

// Chain builds a static middleware chain that executes in the order provided.
// The middlewares are applied right-to-left so they execute left-to-right.
//
// Example:
//
//	Chain(handler, logging, auth, rateLimit)
//	Execution order: logging -> auth -> rateLimit -> handler
//
// Unlike a Dispatcher, Chain takes already built units and does no
// ordering or resolution.
func Chain(handler Handler, middlewares ...Middleware) Handler {
	// Start with the final handler
	final := handler

	// Wrap in reverse order so they execute in the order provided
	for i := len(middlewares) - 1; i >= 0; i-- {
		final = link{mw: middlewares[i], next: final}
	}

	return final
}

// link is one step of a static chain.
type link struct {
	mw   Middleware
	next Handler
}

func (l link) Handle(ctx context.Context, r *http.Request) (Response, error) {
	return l.mw.Process(ctx, r, l.next)
}
