package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Jack4Code/pipeline/config"
)

// FromConfig builds a dispatcher from a pipeline config section: the
// fallback answers with the configured status and body, the aliases are set
// before anything is registered, and middleware are registered in file
// order at their priorities.
//
// Entries are only described here; an unknown identifier fails on the
// dispatch that reaches it, like any other registration.
func FromConfig(cfg config.PipelineConfig, r Resolver, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	d := NewDispatcher(NewFallbackHandler(fallbackResponse(cfg.Fallback)), r, opts...)
	d.SetAliases(cfg.Aliases)

	for _, mw := range cfg.Middleware {
		desc := ID(mw.ID)
		if len(mw.Args) > 0 {
			desc = IDWithArgs(mw.ID, mw.Args)
		}
		d.Register(mw.Priority, desc)
	}

	d.logger.Debug("pipeline configured",
		slog.Int("middleware", d.Len()),
		slog.Int("aliases", len(cfg.Aliases)),
	)
	return d, nil
}

func fallbackResponse(cfg config.FallbackConfig) *BufferedResponse {
	status := cfg.Status
	if status == 0 {
		status = http.StatusNotFound
	}
	resp := Text(status, cfg.Body)
	if cfg.ContentType != "" {
		resp.Header.Set("Content-Type", cfg.ContentType)
	}
	return resp
}

// NewLogger returns a JSON logger writing to w at the named level
// (debug, info, warn or error; anything else means info).
func NewLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l}))
}
