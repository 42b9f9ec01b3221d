package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidMiddleware matches every *InvalidMiddlewareError via errors.Is.
var ErrInvalidMiddleware = errors.New("pipeline: invalid middleware")

// ErrNoFallback is returned by a dispatch that reaches the end of the chain
// of a dispatcher built without a fallback handler.
var ErrNoFallback = errors.New("pipeline: no fallback handler")

// InvalidMiddlewareError is returned when a descriptor cannot be turned into
// a Middleware: it has no recognised shape, its identifier could not be
// constructed, or construction produced something that is not a Middleware.
type InvalidMiddlewareError struct {
	// Middleware is the offending value: the raw descriptor value, the
	// identifier that failed to construct, or the value construction produced.
	Middleware any
	// Cause is the underlying failure, if any.
	Cause error
}

func (e *InvalidMiddlewareError) Error() string {
	msg := fmt.Sprintf("middleware [%s] is invalid", describe(e.Middleware))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InvalidMiddlewareError) Unwrap() error {
	return e.Cause
}

func (e *InvalidMiddlewareError) Is(target error) bool {
	return target == ErrInvalidMiddleware
}

// IsInvalidMiddleware reports whether err is, or wraps, an InvalidMiddlewareError.
func IsInvalidMiddleware(err error) bool {
	var target *InvalidMiddlewareError
	return errors.As(err, &target)
}

// describe renders a value for error messages: strings as is, everything
// else by dynamic type.
func describe(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", v)
	}
}
