package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Spotify.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("spotify: %w", err))
	}
	if err := c.Recorder.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("recorder: %w", err))
	}
	if err := c.Player.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("player: %w", err))
	}
	if err := c.Poll.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("poll: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks SpotifyConfig for errors.
func (c *SpotifyConfig) Validate() error {
	if c.RedirectURI != "" {
		u, err := url.Parse(c.RedirectURI)
		if err != nil {
			return fmt.Errorf("invalid redirect_uri: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid redirect_uri: scheme must be http or https, got %q", u.Scheme)
		}
	}
	return nil
}

// Validate checks RecorderConfig for errors.
func (c *RecorderConfig) Validate() error {
	if c.SilenceThresholdMs < 0 {
		return errors.New("silence_threshold_ms must be non-negative")
	}
	return nil
}

// Validate checks PlayerConfig for errors.
func (c *PlayerConfig) Validate() error {
	var errs []error
	if c.MaxAttempts < 1 || c.MaxAttempts > 10 {
		errs = append(errs, errors.New("max_attempts must be between 1 and 10"))
	}
	if c.BackoffMs < 0 {
		errs = append(errs, errors.New("backoff_ms must be non-negative"))
	}
	return errors.Join(errs...)
}

// Validate checks PollConfig for errors.
func (c *PollConfig) Validate() error {
	if c.IntervalMs < 0 {
		return errors.New("interval_ms must be non-negative")
	}
	if c.IntervalMs > 0 && c.IntervalMs < 100 {
		return fmt.Errorf("interval_ms must be at least 100, got %d", c.IntervalMs)
	}
	if c.SeekToleranceMs < 0 {
		return errors.New("seek_tolerance_ms must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return errors.New("rotation limits must be non-negative")
	}
	return nil
}
