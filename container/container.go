// Package container builds values by name.
//
// A Container maps names to factories. A factory receives the explicit
// arguments of one construction as a map and returns the built value:
//
//	c := container.New()
//	c.MustRegister("middleware.Timeout", container.Provide(func(cfg TimeoutConfig) (*Timeout, error) {
//	    return NewTimeout(cfg), nil
//	}))
//	v, err := c.Construct("middleware.Timeout", map[string]any{"duration": "2s"})
//
// Provide decodes the arguments into a config struct with mapstructure,
// applies defaults and validates it before calling the builder.
package container

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory builds a value from explicit arguments. args is never nil.
type Factory func(args map[string]any) (any, error)

// Container is a registry of named factories. It is safe for concurrent use.
type Container struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger used for registrations and failed constructions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// New returns an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		factories: make(map[string]Factory),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a factory under name.
func (c *Container) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("container: factory name cannot be empty")
	}
	if f == nil {
		return fmt.Errorf("container: factory %q is nil", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[name]; exists {
		return fmt.Errorf("container: factory %q already registered", name)
	}
	c.factories[name] = f

	c.logger.Debug("factory registered", slog.String("name", name))
	return nil
}

// MustRegister is Register that panics on error. Meant for wiring code.
func (c *Container) MustRegister(name string, f Factory) {
	if err := c.Register(name, f); err != nil {
		panic(err)
	}
}

// Has reports whether name is registered.
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.factories[name]
	return ok
}

// Names returns the registered names, sorted.
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Construct builds the value registered under name. Failures are *Error
// values: KindNotFound for unknown names, otherwise the kind reported by the
// factory (KindBuild when the factory returned a plain error).
func (c *Container) Construct(name string, args map[string]any) (any, error) {
	c.mu.RLock()
	f, ok := c.factories[name]
	c.mu.RUnlock()

	if !ok {
		return nil, &Error{
			Kind: KindNotFound,
			Name: name,
			Err:  fmt.Errorf("registered: %v", c.Names()),
		}
	}

	if args == nil {
		args = map[string]any{}
	}

	v, err := f(args)
	if err != nil {
		cerr := asError(name, err)
		c.logger.Debug("construction failed",
			slog.String("name", name),
			slog.String("kind", cerr.Kind.String()),
			slog.String("error", cerr.Err.Error()),
		)
		return nil, cerr
	}
	return v, nil
}
