package config

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// BaseConfig contains the hosting settings of a pipeline server.
// Applications can embed this in their own config structs to inherit them.
type BaseConfig struct {
	HTTPPort    int    `toml:"http_port" env:"HTTP_PORT"`
	HealthPort  int    `toml:"health_port" env:"HEALTH_PORT"`
	MetricsPort int    `toml:"metrics_port" env:"METRICS_PORT"`
	LogLevel    string `toml:"log_level" env:"LOG_LEVEL"`
	Environment string `toml:"environment" env:"ENVIRONMENT"`
}

// PipelineConfig describes a middleware pipeline: the response given when
// no middleware answers, the alias table, and the middleware to register.
type PipelineConfig struct {
	Fallback   FallbackConfig     `toml:"fallback"`
	Aliases    map[string]string  `toml:"aliases"`
	Middleware []MiddlewareConfig `toml:"middleware"`
}

// FallbackConfig is the fixed terminal response.
type FallbackConfig struct {
	Status      int    `toml:"status" env:"FALLBACK_STATUS"`
	Body        string `toml:"body" env:"FALLBACK_BODY"`
	ContentType string `toml:"content_type"`
}

// MiddlewareConfig registers one middleware by identifier or alias.
// Args are handed to the middleware's constructor.
type MiddlewareConfig struct {
	ID       string         `toml:"id"`
	Priority int            `toml:"priority"`
	Args     map[string]any `toml:"args"`
}

// Validate checks that every middleware names an identifier.
func (p *PipelineConfig) Validate() error {
	for i, mw := range p.Middleware {
		if mw.ID == "" {
			return fmt.Errorf("middleware[%d]: id is required", i)
		}
	}
	if p.Fallback.Status != 0 && (p.Fallback.Status < 100 || p.Fallback.Status > 599) {
		return fmt.Errorf("fallback status %d is not a valid HTTP status", p.Fallback.Status)
	}
	return nil
}

// GetHTTPPort returns the HTTP port to use, checking Nomad dynamic port allocation first.
// If NOMAD_PORT_http is set and valid, it returns that value.
// Otherwise, it falls back to the configured HTTPPort value.
func (b *BaseConfig) GetHTTPPort() int {
	return resolvePort("http", b.HTTPPort)
}

// GetHealthPort returns the health port to use, checking Nomad dynamic port allocation first.
// If NOMAD_PORT_health is set and valid, it returns that value.
// Otherwise, it falls back to the configured HealthPort value.
func (b *BaseConfig) GetHealthPort() int {
	return resolvePort("health", b.HealthPort)
}

// GetMetricsPort returns the metrics port to use, checking Nomad dynamic port allocation first.
// If NOMAD_PORT_metrics is set and valid, it returns that value.
// Otherwise, it falls back to the configured MetricsPort value.
func (b *BaseConfig) GetMetricsPort() int {
	return resolvePort("metrics", b.MetricsPort)
}

// resolvePort checks for Nomad dynamic port allocation and falls back to configured value.
// label is the port label (e.g., "http", "health", "metrics")
// fallback is the value from the config to use if Nomad env var is not set
func resolvePort(label string, fallback int) int {
	envVar := "NOMAD_PORT_" + label
	nomadPort := os.Getenv(envVar)

	if nomadPort == "" {
		// No Nomad env var, use config value
		return fallback
	}

	// Parse Nomad port
	port, err := strconv.Atoi(nomadPort)
	if err != nil {
		slog.Warn("nomad port is set but invalid, using configured port",
			slog.String("env", envVar),
			slog.String("value", nomadPort),
			slog.Int("port", fallback),
		)
		return fallback
	}

	slog.Info("using nomad-assigned port", slog.String("label", label), slog.Int("port", port))
	return port
}

// File is the layout of a pipeline server's TOML file.
type File struct {
	Server   BaseConfig     `toml:"server"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

// Validator is implemented by config structs that check themselves after loading.
type Validator interface {
	Validate() error
}

// Loader handles loading configuration from TOML files and environment variables.
type Loader struct {
	configPath string
	envPrefix  string
	strict     bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEnvPrefix prepends prefix to every `env` tag name, e.g. "PIPELINE_"
// turns HTTP_PORT into PIPELINE_HTTP_PORT.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithStrict makes Load fail on keys in the file that match no field.
func WithStrict() LoaderOption {
	return func(l *Loader) {
		l.strict = true
	}
}

// NewLoader creates a new config loader for the specified TOML file path.
func NewLoader(configPath string, opts ...LoaderOption) *Loader {
	l := &Loader{
		configPath: configPath,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the TOML configuration file and unmarshals it into the provided config struct.
// It then applies environment variable overrides for any fields with an `env` tag,
// and finally calls Validate if the struct implements Validator.
// A missing file is not an error: zero values and env overrides are used.
// The config parameter must be a pointer to a struct.
func (l *Loader) Load(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	rv := reflect.ValueOf(config)
	if rv.Kind() != reflect.Ptr {
		return fmt.Errorf("config must be a pointer to a struct, got %T", config)
	}
	if rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config must be a pointer to a struct, got pointer to %v", rv.Elem().Kind())
	}

	md, err := toml.DecodeFile(l.configPath, config)
	switch {
	case err == nil:
		if undecoded := md.Undecoded(); l.strict && len(undecoded) > 0 {
			return fmt.Errorf("unknown keys in %s: %v", l.configPath, undecoded)
		}
	case os.IsNotExist(err):
		slog.Debug("config file not found, using defaults", slog.String("path", l.configPath))
	default:
		return fmt.Errorf("failed to decode TOML file %s: %w", l.configPath, err)
	}

	if err := applyEnvOverridesRecursive(rv.Elem(), l.envPrefix); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if v, ok := config.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", l.configPath, err)
		}
	}

	return nil
}

// Validate checks the pipeline section.
func (f *File) Validate() error {
	return f.Pipeline.Validate()
}

// applyEnvOverridesRecursive recursively walks through struct fields and applies env overrides.
func applyEnvOverridesRecursive(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// Skip unexported fields
		if !field.CanSet() {
			continue
		}

		// If the field is a struct, recurse into it
		if field.Kind() == reflect.Struct {
			if err := applyEnvOverridesRecursive(field, prefix); err != nil {
				return err
			}
			continue
		}

		// Check for env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envTag = prefix + envTag
		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		// Apply the environment variable based on field type
		if err := setFieldFromString(field, envValue, fieldType.Name); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldFromString sets a struct field value from a string based on the field's type.
func setFieldFromString(field reflect.Value, value string, fieldName string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse %q as duration for field %s: %w", value, fieldName, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as int for field %s: %w", value, fieldName, err)
		}
		field.SetInt(intVal)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintVal, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as uint for field %s: %w", value, fieldName, err)
		}
		field.SetUint(uintVal)
		return nil

	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse %q as bool for field %s: %w", value, fieldName, err)
		}
		field.SetBool(boolVal)
		return nil

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %v for field %s", field.Type(), fieldName)
		}
		parts := strings.Split(value, ",")
		out := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p).Convert(field.Type().Elem()))
			}
		}
		field.Set(out)
		return nil

	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as float for field %s: %w", value, fieldName, err)
		}
		field.SetFloat(floatVal)
		return nil

	default:
		return fmt.Errorf("unsupported field type %v for field %s", field.Kind(), fieldName)
	}
}
