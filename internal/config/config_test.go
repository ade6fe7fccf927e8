package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[spotify]
client_id = "abc"

[device]
name = "Kitchen"

[player]
max_attempts = 5

[log]
level = "debug"
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Spotify.ClientID != "abc" {
		t.Errorf("Spotify.ClientID = %q, want %q", cfg.Spotify.ClientID, "abc")
	}
	if cfg.Device.Name != "Kitchen" {
		t.Errorf("Device.Name = %q, want %q", cfg.Device.Name, "Kitchen")
	}
	if cfg.Player.MaxAttempts != 5 {
		t.Errorf("Player.MaxAttempts = %d, want 5", cfg.Player.MaxAttempts)
	}
	if cfg.Player.BackoffMs != 1000 {
		t.Errorf("Player.BackoffMs = %d, want default 1000", cfg.Player.BackoffMs)
	}
	if cfg.Recorder.SilenceThreshold() != 50*time.Millisecond {
		t.Errorf("SilenceThreshold() = %v, want 50ms", cfg.Recorder.SilenceThreshold())
	}
	if cfg.Poll.Interval() != 500*time.Millisecond {
		t.Errorf("Interval() = %v, want 500ms", cfg.Poll.Interval())
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("LoadFrom() error = nil, want error")
	}
}

func TestLoadSearchOrder(t *testing.T) {
	home := t.TempDir()
	xdg := filepath.Join(home, "xdg")
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", xdg)

	writeFile(t, filepath.Join(xdg, "rewind", "config.toml"), "[device]\nname = \"xdg\"\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.Name != "xdg" {
		t.Errorf("Device.Name = %q, want %q", cfg.Device.Name, "xdg")
	}

	writeFile(t, filepath.Join(home, ".rewindrc"), "[device]\nname = \"home\"\n")

	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.Name != "home" {
		t.Errorf("Device.Name = %q, want %q", cfg.Device.Name, "home")
	}
	if Path() != filepath.Join(home, ".rewindrc") {
		t.Errorf("Path() = %q, want ~/.rewindrc", Path())
	}
}

func TestLoadWithoutFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Spotify.RedirectURI != Default().Spotify.RedirectURI {
		t.Errorf("RedirectURI = %q, want default", cfg.Spotify.RedirectURI)
	}
	if Path() != filepath.Join(home, ".rewindrc") {
		t.Errorf("Path() = %q, want DefaultPath", Path())
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[spotify]\nclient_id = \"file\"\n")

	t.Setenv("REWIND_SPOTIFY_CLIENT_ID", "env")
	t.Setenv("REWIND_DEVICE_ID", "dev-1")
	t.Setenv("REWIND_POLL_INTERVAL_MS", "250")
	t.Setenv("REWIND_PLAYER_BACKOFF_MS", "not-a-number")
	t.Setenv("REWIND_LOG_FILE", "/tmp/rewind.log")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Spotify.ClientID != "env" {
		t.Errorf("Spotify.ClientID = %q, want %q", cfg.Spotify.ClientID, "env")
	}
	if cfg.Device.ID != "dev-1" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "dev-1")
	}
	if cfg.Poll.IntervalMs != 250 {
		t.Errorf("Poll.IntervalMs = %d, want 250", cfg.Poll.IntervalMs)
	}
	if cfg.Player.BackoffMs != 1000 {
		t.Errorf("Player.BackoffMs = %d, want 1000 (bad env ignored)", cfg.Player.BackoffMs)
	}
	if cfg.Log.File != "/tmp/rewind.log" {
		t.Errorf("Log.File = %q, want %q", cfg.Log.File, "/tmp/rewind.log")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad redirect scheme", func(c *Config) { c.Spotify.RedirectURI = "ftp://host/cb" }, "redirect_uri"},
		{"negative threshold", func(c *Config) { c.Recorder.SilenceThresholdMs = -1 }, "silence_threshold_ms"},
		{"too many attempts", func(c *Config) { c.Player.MaxAttempts = 11 }, "max_attempts"},
		{"negative backoff", func(c *Config) { c.Player.BackoffMs = -5 }, "backoff_ms"},
		{"poll too fast", func(c *Config) { c.Poll.IntervalMs = 10 }, "interval_ms"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "invalid log level"},
		{"negative rotation", func(c *Config) { c.Log.MaxBackups = -1 }, "rotation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Recorder.SilenceThresholdMs = -1
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"recorder:", "log:"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %v, want it to mention %q", err, want)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := Write(path, Default()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Rewind Configuration") {
		t.Errorf("file does not start with header: %q", data[:40])
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("round trip = %+v, want %+v", cfg, Default())
	}
}

func TestSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[spotify]\nclient_id = \"keep-me\"\n")

	if err := Set(path, "device.name", "Living Room"); err != nil {
		t.Fatalf("Set(device.name) error = %v", err)
	}
	if err := Set(path, "player.max_attempts", "4"); err != nil {
		t.Fatalf("Set(player.max_attempts) error = %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Spotify.ClientID != "keep-me" {
		t.Errorf("Spotify.ClientID = %q, want preserved", cfg.Spotify.ClientID)
	}
	if cfg.Device.Name != "Living Room" {
		t.Errorf("Device.Name = %q, want %q", cfg.Device.Name, "Living Room")
	}
	if cfg.Player.MaxAttempts != 4 {
		t.Errorf("Player.MaxAttempts = %d, want 4", cfg.Player.MaxAttempts)
	}
}

func TestSetErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	tests := []struct {
		key, value, wantErr string
	}{
		{"device", "x", "invalid key format"},
		{"device.colour", "red", "unknown config key"},
		{"player.max_attempts", "three", "must be an integer"},
		{"player.max_attempts", "99", "invalid value"},
		{"log.level", "chatty", "invalid value"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := Set(path, tt.key, tt.value)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Set(%q, %q) = %v, want error containing %q", tt.key, tt.value, err, tt.wantErr)
			}
		})
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("rejected Set() calls should not create the file")
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("Keys() not sorted at %d: %q > %q", i, keys[i-1], keys[i])
		}
	}
	if len(keys) != len(intKeys)+len(stringKeys) {
		t.Errorf("len(Keys()) = %d, want %d", len(keys), len(intKeys)+len(stringKeys))
	}
}
