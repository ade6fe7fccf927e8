package config

// Config is the root configuration structure.
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify" json:"spotify"`
	Device   DeviceConfig   `toml:"device" json:"device"`
	Recorder RecorderConfig `toml:"recorder" json:"recorder"`
	Player   PlayerConfig   `toml:"player" json:"player"`
	Poll     PollConfig     `toml:"poll" json:"poll"`
	Store    StoreConfig    `toml:"store" json:"store"`
	Log      LogConfig      `toml:"log" json:"log"`
}

// SpotifyConfig holds Spotify API settings.
type SpotifyConfig struct {
	ClientID    string `toml:"client_id" json:"client_id"`
	RedirectURI string `toml:"redirect_uri" json:"redirect_uri"`
}

// DeviceConfig names the default Spotify Connect device. ID wins over Name.
type DeviceConfig struct {
	ID   string `toml:"id" json:"id,omitempty"`
	Name string `toml:"name" json:"name,omitempty"`
}

// RecorderConfig holds recording settings.
type RecorderConfig struct {
	SilenceThresholdMs int `toml:"silence_threshold_ms" json:"silence_threshold_ms"`
}

// PlayerConfig holds replay retry settings.
type PlayerConfig struct {
	MaxAttempts int `toml:"max_attempts" json:"max_attempts"`
	BackoffMs   int `toml:"backoff_ms" json:"backoff_ms"`
}

// PollConfig holds playback state polling settings.
type PollConfig struct {
	IntervalMs      int `toml:"interval_ms" json:"interval_ms"`
	SeekToleranceMs int `toml:"seek_tolerance_ms" json:"seek_tolerance_ms"`
}

// StoreConfig holds recording database settings.
type StoreConfig struct {
	Path string `toml:"path" json:"path,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `toml:"level" json:"level"`
	File       string `toml:"file" json:"file,omitempty"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
}
