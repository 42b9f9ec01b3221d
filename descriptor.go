package pipeline

import (
	"context"
	"fmt"
	"net/http"
)

// Kind tags the shape of a Descriptor.
type Kind int

const (
	// KindInvalid marks a value that matched no known shape. It is kept so
	// the failure surfaces when the entry is resolved, not when it is added.
	KindInvalid Kind = iota
	KindInstance
	KindFunc
	KindIdentifier
	KindIdentifierWithArgs
)

func (k Kind) String() string {
	switch k {
	case KindInstance:
		return "instance"
	case KindFunc:
		return "func"
	case KindIdentifier:
		return "identifier"
	case KindIdentifierWithArgs:
		return "identifier_with_args"
	default:
		return "invalid"
	}
}

// Args are named construction arguments for an identifier descriptor.
type Args map[string]any

// Descriptor says how to obtain a middleware unit. Build one with Instance,
// Func, ID, IDWithArgs or Describe.
type Descriptor struct {
	kind     Kind
	instance Middleware
	fn       MiddlewareFunc
	id       string
	args     Args
	raw      any
}

// Instance describes an already built unit.
func Instance(m Middleware) Descriptor {
	if m == nil {
		return Descriptor{kind: KindInvalid}
	}
	if f, ok := m.(MiddlewareFunc); ok {
		return Func(f)
	}
	return Descriptor{kind: KindInstance, instance: m}
}

// Func describes a function unit. Func descriptors are never deduplicated.
func Func(f MiddlewareFunc) Descriptor {
	if f == nil {
		return Descriptor{kind: KindInvalid}
	}
	return Descriptor{kind: KindFunc, fn: f}
}

// ID describes a unit constructed by identifier with no explicit arguments.
func ID(id string) Descriptor {
	return Descriptor{kind: KindIdentifier, id: id}
}

// IDWithArgs describes a unit constructed by identifier with explicit
// arguments. The map is copied.
func IDWithArgs(id string, args Args) Descriptor {
	cp := make(Args, len(args))
	for k, v := range args {
		cp[k] = v
	}
	return Descriptor{kind: KindIdentifierWithArgs, id: id, args: cp}
}

// Describe classifies a loosely typed value:
//
//   - Descriptor: returned as is
//   - Middleware: instance
//   - MiddlewareFunc or func(context.Context, *http.Request, Handler) (Response, error): func
//   - string: identifier
//   - []any{string} or []any{string, Args|map[string]any}: identifier with args
//
// Anything else yields a KindInvalid descriptor that fails on resolution.
func Describe(v any) Descriptor {
	switch v := v.(type) {
	case Descriptor:
		return v
	case MiddlewareFunc:
		return Func(v)
	case Middleware:
		return Instance(v)
	case func(context.Context, *http.Request, Handler) (Response, error):
		return Func(v)
	case string:
		return ID(v)
	case []any:
		return describeSlice(v)
	}
	return Descriptor{kind: KindInvalid, raw: v}
}

func describeSlice(v []any) Descriptor {
	if len(v) == 0 || len(v) > 2 {
		return Descriptor{kind: KindInvalid, raw: v}
	}
	id, ok := v[0].(string)
	if !ok {
		return Descriptor{kind: KindInvalid, raw: v}
	}
	if len(v) == 1 {
		return IDWithArgs(id, nil)
	}
	switch args := v[1].(type) {
	case Args:
		return IDWithArgs(id, args)
	case map[string]any:
		return IDWithArgs(id, args)
	case nil:
		return IDWithArgs(id, nil)
	}
	return Descriptor{kind: KindInvalid, raw: v}
}

// Kind returns the descriptor's shape.
func (d Descriptor) Kind() Kind { return d.kind }

// Identifier returns the identifier of an identifier descriptor, "" otherwise.
func (d Descriptor) Identifier() string { return d.id }

// Args returns a copy of the explicit arguments; empty for KindIdentifier.
func (d Descriptor) Args() Args {
	cp := make(Args, len(d.args))
	for k, v := range d.args {
		cp[k] = v
	}
	return cp
}

// IsIdentifier reports whether the descriptor is resolved by identifier.
func (d Descriptor) IsIdentifier() bool {
	return d.kind == KindIdentifier || d.kind == KindIdentifierWithArgs
}

// withIdentifier returns a copy with the identifier swapped, keeping the args.
func (d Descriptor) withIdentifier(id string) Descriptor {
	d.id = id
	return d
}

// dedupKey returns the key under which equal-priority registrations replace
// each other. Func and invalid descriptors have none.
func (d Descriptor) dedupKey() (string, bool) {
	switch d.kind {
	case KindIdentifier, KindIdentifierWithArgs:
		return d.id, true
	case KindInstance:
		return fmt.Sprintf("%T", d.instance), true
	}
	return "", false
}

func (d Descriptor) String() string {
	switch d.kind {
	case KindInstance:
		return fmt.Sprintf("instance(%T)", d.instance)
	case KindFunc:
		return "func"
	case KindIdentifier:
		return d.id
	case KindIdentifierWithArgs:
		return fmt.Sprintf("%s %v", d.id, map[string]any(d.args))
	}
	return fmt.Sprintf("invalid(%s)", describe(d.raw))
}
