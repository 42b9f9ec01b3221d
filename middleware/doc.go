// Package middleware provides the built-in pipeline units.
//
// Every unit is a [pipeline.Middleware] with a config struct decoded from
// the arguments of its descriptor. [Register] puts a factory for each unit
// into a [container.Container] under its canonical identifier, and
// [Aliases] returns the short names used in config files:
//
//	c := container.New()
//	if err := middleware.Register(c); err != nil {
//	    return err
//	}
//	d := pipeline.NewDispatcher(fallback, pipeline.NewFactoryResolver(c))
//	d.SetAliases(middleware.Aliases())
//	d.Register(100, pipeline.ID("recover"))
//	d.Register(50, pipeline.IDWithArgs("timeout", pipeline.Args{"duration": "2s"}))
//
// # Built-in Units
//
//   - [RequireAuth]: JWT bearer auth, puts the user id in the context
//   - [BasicAuth]: HTTP basic auth against bcrypt hashes
//   - [CORS]: CORS headers, answers preflight requests itself
//   - [RequestID]: X-Request-ID propagation
//   - [Logging]: one structured log line per request
//   - [Recover]: turns panics into errors
//   - [Timeout]: request context deadline
//   - [Tracing]: OpenTelemetry span per request
//   - Metrics: Prometheus request counter and latency histogram
//   - RateLimit: token bucket, answers 429 when empty
//   - [Multipart]: body cap and multipart form parsing
//
// A unit that answers on its own (401, 429, preflight) never calls next,
// so nothing registered after it is constructed.
package middleware
