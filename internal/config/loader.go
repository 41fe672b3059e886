package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvLogLevel      = "PROCTOR_LOG_LEVEL"
	EnvPostgresDSN   = "PROCTOR_POSTGRES_DSN"
	EnvRedisAddr     = "PROCTOR_REDIS_ADDR"
	EnvRedisPassword = "PROCTOR_REDIS_PASSWORD"
	EnvCamera        = "PROCTOR_CAMERA"
	EnvDashboardPort = "PROCTOR_DASHBOARD_PORT"
	EnvAudioDevice   = "PROCTOR_AUDIO_DEVICE"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Load reads .env (if present), the YAML file at path (empty means defaults
// only), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromReader decodes YAML over the defaults and validates the result.
// The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// applyEnv overrides deployment settings from the environment
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookup(EnvPostgresDSN); ok {
		cfg.Storage.PostgresDSN = v
	}
	if v, ok := lookup(EnvRedisAddr); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := lookup(EnvRedisPassword); ok {
		cfg.Redis.Password = v
	}
	if v, ok := lookup(EnvCamera); ok && v != "" {
		cfg.Camera.Device = v
	}
	if v, ok := lookup(EnvAudioDevice); ok && v != "" {
		cfg.Audio.Device = v
	}
	if v, ok := lookup(EnvDashboardPort); ok && v != "" {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return fmt.Errorf("config: %s=%q is not a port", EnvDashboardPort, v)
		}
		cfg.Dashboard.Port = v
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Log.Level != "" && !slices.Contains(validLogLevels, cfg.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if f := cfg.Log.Format; f != "" && f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: json, text", f))
	}

	if len(cfg.Gaze.Regions) == 0 && (cfg.Gaze.RegionFraction <= 0 || cfg.Gaze.RegionFraction > 0.5) {
		errs = append(errs, fmt.Errorf("gaze.region_fraction %.2f is out of range (0, 0.5]", cfg.Gaze.RegionFraction))
	}
	if err := cfg.Proctor().Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := cfg.Audio.Config.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}
	if err := cfg.Camera.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("camera: %w", err))
	}
	if cfg.Faces.ModelPath == "" {
		errs = append(errs, errors.New("faces.model_path is required"))
	}
	if cfg.Objects.Enabled && cfg.Objects.ModelPath == "" {
		errs = append(errs, errors.New("objects.model_path is required when objects are enabled"))
	}

	if cfg.Dashboard.Enabled {
		if _, err := strconv.ParseUint(cfg.Dashboard.Port, 10, 16); err != nil {
			errs = append(errs, fmt.Errorf("dashboard.port %q is not a port", cfg.Dashboard.Port))
		}
	}
	if cfg.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis.db must be non-negative, got %d", cfg.Redis.DB))
	}

	return errors.Join(errs...)
}
