// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar points at an explicit config file, overriding the search
// paths.
const ConfigPathEnvVar = "IVA_CONSOLE_CONFIG"

// defaultConfigPaths are searched in order when ConfigPathEnvVar is unset.
var defaultConfigPaths = []string{
	"config.yaml",
	"/etc/iva-console/config.yaml",
}

// Config is the complete daemon configuration.
type Config struct {
	Backend BackendConfig `koanf:"backend" validate:"required"`
	Session SessionConfig `koanf:"session"`
	Live    LiveConfig    `koanf:"live" validate:"required"`
	View    ViewConfig    `koanf:"view"`
	Admin   AdminConfig   `koanf:"admin"`
	Logging LoggingConfig `koanf:"logging"`
}

// BackendConfig describes the surveillance backend the pipeline talks to.
type BackendConfig struct {
	URL        string        `koanf:"url" validate:"required,url"`
	HeaderName string        `koanf:"header_name" validate:"required"`
	Timeout    time.Duration `koanf:"timeout" validate:"required"`

	// SentinelCodes are the application-level failure codes that signal
	// soft session invalidation inside otherwise-successful responses.
	SentinelCodes []int `koanf:"sentinel_codes" validate:"required,min=1"`
}

// SessionConfig tunes the invalidation controller and the credential cache.
type SessionConfig struct {
	Countdown time.Duration `koanf:"countdown" validate:"required"`

	// StorePath is the BadgerDB directory for the credential cache. Empty
	// selects the in-memory store.
	StorePath string `koanf:"store_path"`

	// MasterKey is a base64 key enabling credential encryption at rest.
	// Empty stores the credential in plaintext.
	MasterKey string `koanf:"master_key"`
}

// LiveConfig describes the live event transport.
type LiveConfig struct {
	URL            string        `koanf:"url" validate:"required"`
	InitialBackoff time.Duration `koanf:"initial_backoff" validate:"required"`
	MaxBackoff     time.Duration `koanf:"max_backoff" validate:"required,gtefield=InitialBackoff"`
}

// ViewConfig tunes the per-screen merge buffers.
type ViewConfig struct {
	PageSize      int           `koanf:"page_size" validate:"min=1,max=500"`
	ToastInterval time.Duration `koanf:"toast_interval"`
	ToastBurst    int           `koanf:"toast_burst"`
}

// AdminConfig describes the operational HTTP surface.
type AdminConfig struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`

	// RateLimit is requests per minute per client IP.
	RateLimit int `koanf:"rate_limit" validate:"min=1"`

	// AllowedOrigins feed the CORS middleware. "*" allows everything.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// LoggingConfig mirrors internal/logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, overridable by file and env.
func defaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			HeaderName:    "X-Auth-Token",
			Timeout:       30 * time.Second,
			SentinelCodes: []int{40101, 40102},
		},
		Session: SessionConfig{
			Countdown: 10 * time.Second,
		},
		Live: LiveConfig{
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
		},
		View: ViewConfig{
			PageSize:      10,
			ToastInterval: time.Second,
			ToastBurst:    3,
		},
		Admin: AdminConfig{
			Addr:           ":9090",
			RateLimit:      120,
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return cfg, nil
}

// Validate checks the merged configuration against the struct rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
	}
	return err
}

// processSliceFields converts comma-separated env values into real slices
// before unmarshaling; YAML sources already deliver slices and are left
// alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range []string{"backend.sentinel_codes", "admin.allowed_origins"} {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// findConfigFile resolves the config file path: env override first, then the
// search list.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings translate the console's documented environment variables to
// koanf paths. Unknown variables are ignored so the daemon coexists with an
// arbitrary environment.
var envMappings = map[string]string{
	"iva_backend_url":            "backend.url",
	"iva_backend_header_name":    "backend.header_name",
	"iva_backend_timeout":        "backend.timeout",
	"iva_backend_sentinel_codes": "backend.sentinel_codes",

	"iva_session_countdown":  "session.countdown",
	"iva_session_store_path": "session.store_path",
	"iva_session_master_key": "session.master_key",

	"iva_live_url":             "live.url",
	"iva_live_initial_backoff": "live.initial_backoff",
	"iva_live_max_backoff":     "live.max_backoff",

	"iva_view_page_size":      "view.page_size",
	"iva_view_toast_interval": "view.toast_interval",
	"iva_view_toast_burst":    "view.toast_burst",

	"iva_admin_addr":            "admin.addr",
	"iva_admin_rate_limit":      "admin.rate_limit",
	"iva_admin_allowed_origins": "admin.allowed_origins",

	"iva_log_level":  "logging.level",
	"iva_log_format": "logging.format",
	"iva_log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Returning "" drops the variable.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
