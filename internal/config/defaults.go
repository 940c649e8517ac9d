package config

const (
	defaultDataDir          = "~/.local/share/pennysync"
	defaultLogDir           = "~/.local/share/pennysync/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultRequestTimeout   = 0
	defaultMaxRetries       = 5
	defaultDrainLockTimeout = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Endpoints: Endpoints{
			RequestTimeout: defaultRequestTimeout,
		},
		Sync: Sync{
			RetryFailed:           false,
			MaxRetries:            defaultMaxRetries,
			AnalysisFailurePolicy: PolicyDrop,
			SaveFailurePolicy:     PolicyQueue,
			DrainLockTimeout:      defaultDrainLockTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
