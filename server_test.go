package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Jack4Code/pipeline/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPHandler(t *testing.T) {
	t.Run("writes response", func(t *testing.T) {
		h := HandlerFunc(func(ctx context.Context, r *http.Request) (Response, error) {
			return JSON(http.StatusCreated, map[string]string{"id": "1"}), nil
		})

		rec := httptest.NewRecorder()
		HTTPHandler(h, discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		if rec.Code != http.StatusCreated {
			t.Errorf("status = %d, want 201", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"id":"1"`) {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("error becomes 500", func(t *testing.T) {
		var logs bytes.Buffer
		h := HandlerFunc(func(ctx context.Context, r *http.Request) (Response, error) {
			return nil, errors.New("secret detail")
		})

		rec := httptest.NewRecorder()
		HTTPHandler(h, slog.New(slog.NewJSONHandler(&logs, nil))).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "secret detail") {
			t.Error("error detail leaked to the client")
		}
		if !strings.Contains(logs.String(), "secret detail") {
			t.Error("error was not logged")
		}
	})
}

func TestNewRouter_DispatcherRoute(t *testing.T) {
	d := NewDispatcher(NewFallbackHandler(Text(http.StatusOK, "hello")), NewFactoryResolver(nil))
	d.Register(0, Func(func(ctx context.Context, r *http.Request, next Handler) (Response, error) {
		resp, err := next.Handle(ctx, r)
		if err == nil {
			resp.(*BufferedResponse).WriteString(" world")
		}
		return resp, err
	}))

	router := NewRouter([]Route{
		{Method: http.MethodGet, Path: "/greet", Handler: d},
		{Method: http.MethodGet, Path: "/chained", Handler: d, Middleware: []Middleware{&appender{text: "!"}}},
	}, discardLogger())

	tests := []struct {
		method, path string
		status       int
		body         string
	}{
		{http.MethodGet, "/greet", http.StatusOK, "hello world"},
		{http.MethodGet, "/chained", http.StatusOK, "hello world!"},
		{http.MethodPost, "/greet", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

		if rec.Code != tt.status {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, rec.Code, tt.status)
		}
		if tt.body != "" && rec.Body.String() != tt.body {
			t.Errorf("%s %s: body = %q, want %q", tt.method, tt.path, rec.Body.String(), tt.body)
		}
	}
}

func TestHealthMux(t *testing.T) {
	status := newHealthStatus()
	m := newHealthMux(status)

	check := func(path string, want int) {
		t.Helper()
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Errorf("%s = %d, want %d", path, rec.Code, want)
		}
	}

	check("/health", http.StatusServiceUnavailable)
	check("/ready", http.StatusServiceUnavailable)

	status.SetHealthy(true)
	status.SetReady(true)
	check("/health", http.StatusOK)
	check("/ready", http.StatusOK)
}

func TestFromConfig(t *testing.T) {
	c := &testConstructor{}
	cfg := config.PipelineConfig{
		Fallback: config.FallbackConfig{Status: http.StatusTeapot, Body: "", ContentType: "text/x-test"},
		Aliases:  map[string]string{"first": "A"},
		Middleware: []config.MiddlewareConfig{
			{ID: "B", Priority: 0},
			{ID: "first", Priority: 10, Args: map[string]any{"text": "a"}},
		},
	}

	d, err := FromConfig(cfg, NewFactoryResolver(c), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}

	buf := dispatch(t, d)
	if buf.String() != "Ba" {
		t.Errorf("body = %q, want Ba", buf.String())
	}
	if buf.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want 418", buf.StatusCode)
	}
	if ct := buf.Header.Get("Content-Type"); ct != "text/x-test" {
		t.Errorf("Content-Type = %q", ct)
	}
	if d.Aliases()["first"] != "A" {
		t.Errorf("Aliases() = %v", d.Aliases())
	}
}

func TestFromConfig_Defaults(t *testing.T) {
	d, err := FromConfig(config.PipelineConfig{}, NewFactoryResolver(nil))
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if buf := dispatch(t, d); buf.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", buf.StatusCode)
	}
}

func TestFromConfig_Invalid(t *testing.T) {
	cfg := config.PipelineConfig{Middleware: []config.MiddlewareConfig{{Priority: 1}}}
	if _, err := FromConfig(cfg, NewFactoryResolver(nil)); err == nil {
		t.Error("expected an error for a middleware without id")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line logged at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("output = %q", out)
	}
}
