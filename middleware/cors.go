package middleware

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/Jack4Code/pipeline"
)

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// DefaultCORSConfig returns a permissive CORS config for development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}
}

// ApplyDefaults fills every list left empty from DefaultCORSConfig.
func (c *CORSConfig) ApplyDefaults() {
	d := DefaultCORSConfig()
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = d.AllowedOrigins
	}
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = d.AllowedMethods
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = d.AllowedHeaders
	}
	if len(c.ExposedHeaders) == 0 {
		c.ExposedHeaders = d.ExposedHeaders
	}
}

// CORS returns a unit that adds CORS headers to the response. Preflight
// requests (OPTIONS with Access-Control-Request-Method) are answered with
// 204 without calling next.
func CORS(cfg CORSConfig) pipeline.Middleware {
	return pipeline.MiddlewareFunc(func(ctx context.Context, r *http.Request, next pipeline.Handler) (pipeline.Response, error) {
		h := corsHeaders(cfg, r.Header.Get("Origin"))

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			resp := pipeline.Text(http.StatusNoContent, "")
			resp.Header.Del("Content-Type")
			return withHeaders(resp, h), nil
		}

		resp, err := next.Handle(ctx, r)
		if err != nil {
			return nil, err
		}
		return withHeaders(resp, h), nil
	})
}

func corsHeaders(cfg CORSConfig, origin string) http.Header {
	h := http.Header{}

	// Browsers refuse "*" on credentialed requests, so the origin is echoed.
	wildcard := slices.Contains(cfg.AllowedOrigins, "*")
	switch {
	case wildcard && !cfg.AllowCredentials:
		h.Set("Access-Control-Allow-Origin", "*")
	case origin != "" && (wildcard || slices.Contains(cfg.AllowedOrigins, origin)):
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	}

	if len(cfg.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
	}
	if len(cfg.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
	}
	if len(cfg.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposedHeaders, ", "))
	}
	if cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if cfg.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
	}
	return h
}
