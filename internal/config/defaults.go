package config

const (
	defaultStagingDir     = "~/.local/share/shelfward/staging"
	defaultLogDir         = "~/.local/share/shelfward/logs"
	defaultLibraryRoot    = "~/audiobooks"
	defaultNamingPattern  = "{Author}/[{Series}/][Vol. {Volume} - ]{Year} - {Title}[ {{Narrator}}]/{Title}.m4b"
	defaultAuthFile       = "~/.config/shelfward/auth.json"
	defaultQuality        = "high"
	defaultUserAgent      = "Audible/671 CFNetwork/1240.0.4 Darwin/20.6.0"
	defaultRequestTimeout = 30
	defaultConcurrency    = 3
	defaultRetryAttempts  = 3
	defaultRetryDelay     = 5
	defaultDedupThreshold = 0.85
	defaultNotifyTimeout  = 10
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Library: Library{
			Roots:         []string{defaultLibraryRoot},
			NamingPattern: defaultNamingPattern,
		},
		Content: Content{
			AuthFile:       defaultAuthFile,
			Quality:        defaultQuality,
			UserAgent:      defaultUserAgent,
			RequestTimeout: defaultRequestTimeout,
		},
		Download: Download{
			Concurrency:       defaultConcurrency,
			RetryAttempts:     defaultRetryAttempts,
			RetryDelaySeconds: defaultRetryDelay,
		},
		Dedup: Dedup{
			Enabled:             true,
			SimilarityThreshold: defaultDedupThreshold,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Batch:          true,
			Items:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
