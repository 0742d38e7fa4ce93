package config

// DefaultIgnoredSchemes lists URL schemes that belong to the browser itself,
// extensions or local content. Pages on these schemes are never tracked.
func DefaultIgnoredSchemes() []string {
	return []string{
		"about",
		"blob",
		"brave",
		"chrome",
		"chrome-extension",
		"chrome-search",
		"chrome-untrusted",
		"data",
		"devtools",
		"edge",
		"file",
		"internal",
		"javascript",
		"moz-extension",
		"opera",
		"view-source",
		"vivaldi",
	}
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			IdleThresholdSeconds: 60,
			FlushIntervalSeconds: 60,
			AlarmName:            "saveData",
			IgnoredSchemes:       DefaultIgnoredSchemes(),
			QueueSize:            64,
		},
		Capture: CaptureConfig{
			UseDefaultDenylist: false,
			DenylistDomains:    []string{},
		},
		Storage: StorageConfig{
			Path:              "~/.config/dwell",
			SQLiteFile:        "dwell.db",
			SQLiteJournalMode: "wal",
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           7773,
			AuthToken:      "",
			MaxRequestSize: 1048576,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}
