package container

import (
	"errors"
	"fmt"
)

// Kind classifies a construction failure.
type Kind int

const (
	// KindBuild: the factory ran and failed.
	KindBuild Kind = iota
	// KindNotFound: no factory under that name.
	KindNotFound
	// KindInvalidArgs: the explicit arguments did not decode or validate.
	KindInvalidArgs
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgs:
		return "invalid_args"
	default:
		return "build"
	}
}

// Error is a failed construction.
type Error struct {
	Kind Kind
	Name string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("container: unknown name %q (%v)", e.Name, e.Err)
	case KindInvalidArgs:
		return fmt.Sprintf("container: invalid arguments for %q: %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("container: cannot build %q: %v", e.Name, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Kind == k
}

// invalidArgs marks a factory error as an argument problem.
type invalidArgs struct {
	err error
}

func (e invalidArgs) Error() string { return e.err.Error() }
func (e invalidArgs) Unwrap() error { return e.err }

// InvalidArgs wraps err so Construct reports it as KindInvalidArgs.
// Factories written without Provide use it for their own argument checks.
func InvalidArgs(err error) error {
	return invalidArgs{err: err}
}

func asError(name string, err error) *Error {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}
	var ia invalidArgs
	if errors.As(err, &ia) {
		return &Error{Kind: KindInvalidArgs, Name: name, Err: ia.err}
	}
	return &Error{Kind: KindBuild, Name: name, Err: err}
}
