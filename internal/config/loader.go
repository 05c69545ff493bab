package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultPIDFile returns the well-known PID file path,
// ~/.voicemode/audio_manager.pid. Falls back to the working directory when
// the home directory cannot be resolved.
func DefaultPIDFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "audio_manager.pid"
	}
	return filepath.Join(home, ".voicemode", "audio_manager.pid")
}

// Load reads the YAML configuration file at path over the defaults and
// validates the result. A missing file is not an error: the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	if err := decodeInto(cfg, f); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeInto(cfg, r); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeInto(cfg *Config, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides cfg from the process environment. Malformed values are
// reported, not silently ignored.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not a port number: %w", EnvPort, v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv(EnvHotkey); v != "" {
		cfg.Hotkey = v
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", cfg.Port))
	}
	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.ReservationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("reservation_timeout must be positive, got %v", cfg.ReservationTimeout))
	}
	if cfg.ChimeCooldown <= 0 {
		errs = append(errs, fmt.Errorf("chime_cooldown must be positive, got %v", cfg.ChimeCooldown))
	}
	if cfg.CompletionCleanupDelay <= 0 {
		errs = append(errs, fmt.Errorf("completion_cleanup_delay must be positive, got %v", cfg.CompletionCleanupDelay))
	}

	return errors.Join(errs...)
}
