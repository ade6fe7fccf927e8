// Package config loads rewind's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const header = "# Rewind Configuration\n# https://github.com/tessro/rewind\n\n"

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.rewindrc, $XDG_CONFIG_HOME/rewind/config.toml, ~/.config/rewind/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	// Try loading from file
	path := findConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// Apply defaults, then environment variable overrides
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// DefaultPath is where `config init` writes a new file.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rewindrc"
	}
	return filepath.Join(home, ".rewindrc")
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".rewindrc"),
	}

	// XDG_CONFIG_HOME or default
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "rewind", "config.toml"))

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// Path returns the config file Load would read, or DefaultPath when none exists.
func Path() string {
	if p := findConfigFile(); p != "" {
		return p
	}
	return DefaultPath()
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Spotify
	if v := os.Getenv("REWIND_SPOTIFY_CLIENT_ID"); v != "" {
		cfg.Spotify.ClientID = v
	}
	if v := os.Getenv("REWIND_SPOTIFY_REDIRECT_URI"); v != "" {
		cfg.Spotify.RedirectURI = v
	}

	// Device
	if v := os.Getenv("REWIND_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("REWIND_DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}

	envInt("REWIND_RECORDER_SILENCE_THRESHOLD_MS", &cfg.Recorder.SilenceThresholdMs)
	envInt("REWIND_PLAYER_MAX_ATTEMPTS", &cfg.Player.MaxAttempts)
	envInt("REWIND_PLAYER_BACKOFF_MS", &cfg.Player.BackoffMs)
	envInt("REWIND_POLL_INTERVAL_MS", &cfg.Poll.IntervalMs)

	if v := os.Getenv("REWIND_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}

	// Log
	if v := os.Getenv("REWIND_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REWIND_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

// SilenceThreshold returns the recorder noise floor.
func (c *RecorderConfig) SilenceThreshold() time.Duration {
	return time.Duration(c.SilenceThresholdMs) * time.Millisecond
}

// Backoff returns the base retry delay.
func (c *PlayerConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMs) * time.Millisecond
}

// Interval returns the playback state polling interval.
func (c *PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// SeekTolerance returns the allowed position drift between polls.
func (c *PollConfig) SeekTolerance() time.Duration {
	return time.Duration(c.SeekToleranceMs) * time.Millisecond
}

// Write encodes cfg to path, creating parent directories.
func Write(path string, cfg any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	encoder := toml.NewEncoder(f)
	encoder.Indent = "  "
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

var intKeys = map[string]bool{
	"recorder.silence_threshold_ms": true,
	"player.max_attempts":           true,
	"player.backoff_ms":             true,
	"poll.interval_ms":              true,
	"poll.seek_tolerance_ms":        true,
	"log.max_size_mb":               true,
	"log.max_backups":               true,
	"log.max_age_days":              true,
}

var stringKeys = map[string]bool{
	"spotify.client_id":    true,
	"spotify.redirect_uri": true,
	"device.id":            true,
	"device.name":          true,
	"store.path":           true,
	"log.level":            true,
	"log.file":             true,
}

// Set updates one section.key entry in the file at path, keeping the
// other entries as written. The result must still validate.
func Set(path, key, value string) error {
	raw := map[string]any{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" {
		return fmt.Errorf("invalid key format %q. Use 'section.key' (e.g., device.name)", key)
	}

	var typed any
	switch {
	case intKeys[key]:
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("value must be an integer for %s", key)
		}
		typed = i
	case stringKeys[key]:
		typed = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	sectionMap, ok := raw[section].(map[string]any)
	if !ok {
		sectionMap = map[string]any{}
		raw[section] = sectionMap
	}
	sectionMap[field] = typed

	// Round-trip through the typed struct so bad values never hit disk.
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	check := &Config{}
	if _, err := toml.Decode(buf.String(), check); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	check.ApplyDefaults()
	if err := check.Validate(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	return Write(path, raw)
}

// Keys lists the keys Set accepts.
func Keys() []string {
	keys := make([]string, 0, len(intKeys)+len(stringKeys))
	for k := range stringKeys {
		keys = append(keys, k)
	}
	for k := range intKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
