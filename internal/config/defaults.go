package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURI: "http://127.0.0.1:8888/callback",
		},
		Recorder: RecorderConfig{
			SilenceThresholdMs: 50,
		},
		Player: PlayerConfig{
			MaxAttempts: 3,
			BackoffMs:   1000,
		},
		Poll: PollConfig{
			IntervalMs:      500,
			SeekToleranceMs: 2000,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Spotify
	if c.Spotify.RedirectURI == "" {
		c.Spotify.RedirectURI = d.Spotify.RedirectURI
	}

	if c.Recorder.SilenceThresholdMs == 0 {
		c.Recorder.SilenceThresholdMs = d.Recorder.SilenceThresholdMs
	}

	// Player
	if c.Player.MaxAttempts == 0 {
		c.Player.MaxAttempts = d.Player.MaxAttempts
	}
	if c.Player.BackoffMs == 0 {
		c.Player.BackoffMs = d.Player.BackoffMs
	}

	// Poll
	if c.Poll.IntervalMs == 0 {
		c.Poll.IntervalMs = d.Poll.IntervalMs
	}
	if c.Poll.SeekToleranceMs == 0 {
		c.Poll.SeekToleranceMs = d.Poll.SeekToleranceMs
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = d.Log.MaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = d.Log.MaxAgeDays
	}
}
