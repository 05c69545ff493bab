// Package config provides the configuration schema and loader for the audio
// manager. Values resolve in order: built-in defaults, then the optional
// YAML file, then environment variables, then CLI flags (applied by main).
package config

import (
	"time"
)

// Environment variables honored by [ApplyEnv].
const (
	EnvPort   = "VOICEMODE_AUDIO_MANAGER_PORT"
	EnvHotkey = "VOICEMODE_PAUSE_HOTKEY"
)

// LogLevel controls logging verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether the level is one of the recognized values.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration for the audio manager service.
type Config struct {
	// Port is the loopback HTTP port.
	Port int `yaml:"port"`

	// Hotkey is the modifier key that pauses playback while held.
	// Valid values: fn, ctrl, option, command, shift. Unknown values
	// coerce to fn at monitor construction.
	Hotkey string `yaml:"hotkey"`

	// LogLevel controls verbosity. Valid values: debug, info, warn, error.
	LogLevel LogLevel `yaml:"log_level"`

	// ReservationTimeout is how long an unfilled reservation may stall
	// the queue before it is dropped.
	ReservationTimeout Duration `yaml:"reservation_timeout"`

	// ChimeCooldown is the minimum spacing between permitted chimes,
	// shared across all windows.
	ChimeCooldown Duration `yaml:"chime_cooldown"`

	// CompletionCleanupDelay is how long a finished item's completion
	// event stays queryable for late wait callers.
	CompletionCleanupDelay Duration `yaml:"completion_cleanup_delay"`

	// PIDFile is where the process id is recorded while the service
	// runs. Empty disables the PID file.
	PIDFile string `yaml:"pid_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:                   8881,
		Hotkey:                 "fn",
		LogLevel:               LogInfo,
		ReservationTimeout:     Duration(30 * time.Second),
		ChimeCooldown:          Duration(60 * time.Second),
		CompletionCleanupDelay: Duration(60 * time.Second),
		PIDFile:                DefaultPIDFile(),
	}
}
