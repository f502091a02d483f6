package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// ControlSocket is the unixgram socket bound when the daemon is not socket activated.
	ControlSocket string `koanf:"control_socket" validate:"required,unix_path"`

	// ReportPeriod is the interval between progress lines of a long operation, in seconds.
	ReportPeriod int `koanf:"report_period" validate:"gte=1"`

	// OpTimeout bounds each control operation, in seconds. Zero disables the deadline.
	OpTimeout int `koanf:"op_timeout" validate:"gte=0"`

	// RowChunk is how many rows are processed between progress and cancellation checks.
	RowChunk int `koanf:"row_chunk" validate:"gte=1"`

	// VerifyMaxDiff stops a verify after that many differing rows.
	VerifyMaxDiff int `koanf:"verify_max_diff" validate:"gte=1"`

	// BloomFPRate is the false-positive rate of the per-snapshot prefilter; 0 disables it.
	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gte=0,lt=1"`

	// RangeCacheSize bounds the memoized range results; 0 disables the cache.
	RangeCacheSize int `koanf:"range_cache_size" validate:"gte=0"`

	// HistoryDB is the bbolt journal of control operations; empty disables it.
	HistoryDB string `koanf:"history_db"`

	// MetricsAddr is the host:port serving /metrics; empty disables it.
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,hostname_port"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings for the lookup daemon.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:            "prod",
	LogLevel:       "info",
	ControlSocket:  "/run/callfwd/control.sock",
	ReportPeriod:   30,
	OpTimeout:      0,
	RowChunk:       10000,
	VerifyMaxDiff:  100,
	BloomFPRate:    0.01,
	RangeCacheSize: 1024,
	HistoryDB:      "/var/lib/callfwd/history.db",
	MetricsAddr:    "127.0.0.1:9464",
}

// maxUnixPath is the size of sun_path on Linux, minus the terminating NUL.
const maxUnixPath = 107

// validUnixPath accepts an absolute socket path that fits in a sockaddr_un.
func validUnixPath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	return filepath.IsAbs(p) && len(p) <= maxUnixPath && !strings.HasSuffix(p, "/")
}

// envLoader loads environment variables with the prefix "CALLFWD_".
// It transforms the keys to lowercase and removes the prefix,
// and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "CALLFWD_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "CALLFWD_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "unix_path" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("unix_path", validUnixPath)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
