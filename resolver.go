package pipeline

import (
	"context"
	"errors"
	"net/http"
)

// Resolver turns a Descriptor into a Middleware.
type Resolver interface {
	Resolve(d Descriptor) (Middleware, error)
}

// Constructor builds a value from a canonical identifier and explicit
// arguments. *container.Container satisfies it; any error it returns is
// reported as an InvalidMiddlewareError by FactoryResolver.
type Constructor interface {
	Construct(id string, args map[string]any) (any, error)
}

// ConstructorFunc adapts a function to the Constructor interface.
type ConstructorFunc func(id string, args map[string]any) (any, error)

func (f ConstructorFunc) Construct(id string, args map[string]any) (any, error) {
	return f(id, args)
}

// FactoryResolver is the default Resolver. Instances are returned as they
// are, functions are adapted, identifiers are handed to the Constructor.
type FactoryResolver struct {
	constructor Constructor
}

// NewFactoryResolver returns a resolver delegating identifiers to c.
// A nil c rejects every identifier descriptor.
func NewFactoryResolver(c Constructor) *FactoryResolver {
	return &FactoryResolver{constructor: c}
}

func (r *FactoryResolver) Resolve(d Descriptor) (Middleware, error) {
	switch d.kind {
	case KindInstance:
		return d.instance, nil
	case KindFunc:
		return d.fn, nil
	case KindIdentifier, KindIdentifierWithArgs:
		return r.construct(d.id, d.Args())
	}
	return nil, &InvalidMiddlewareError{Middleware: d.raw}
}

func (r *FactoryResolver) construct(id string, args map[string]any) (Middleware, error) {
	if r.constructor == nil {
		return nil, &InvalidMiddlewareError{
			Middleware: id,
			Cause:      errors.New("no constructor configured"),
		}
	}

	v, err := r.constructor.Construct(id, args)
	if err != nil {
		return nil, &InvalidMiddlewareError{Middleware: id, Cause: err}
	}

	switch m := v.(type) {
	case nil:
		return nil, &InvalidMiddlewareError{
			Middleware: id,
			Cause:      errors.New("constructor returned nil"),
		}
	case Middleware:
		return m, nil
	case func(context.Context, *http.Request, Handler) (Response, error):
		return MiddlewareFunc(m), nil
	}
	return nil, &InvalidMiddlewareError{Middleware: v}
}
