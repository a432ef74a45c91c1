package config

const (
	defaultDataDir = "~/.local/share/optic"

	defaultSampleSize = 50

	defaultFetchWorkers        = 12
	defaultFetchTimeout        = 30
	defaultFetchRetryAttempts  = 3
	defaultFetchRetryBaseDelay = 2
	defaultFetchRetryMaxDelay  = 30
	defaultFetchMaxFileMiB     = 20

	defaultAnalysisBaseURL        = "http://127.0.0.1:1234/v1"
	defaultAnalysisModel          = "qwen2.5-vl-7b-instruct"
	defaultAnalysisTimeout        = 120
	defaultAnalysisRetryAttempts  = 3
	defaultAnalysisRetryBaseDelay = 1
	defaultAnalysisRetryMaxDelay  = 30
	defaultAnalysisTemperature    = 0.3
	defaultAnalysisMaxTokens      = 2000
	defaultAnalysisMaxImages      = 4
	defaultContextBudgetChars     = 6000
	defaultMaxComments            = 20

	defaultAnalysisWorkers    = 1
	defaultCheckpointInterval = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Input: Input{
			SampleSize: defaultSampleSize,
		},
		Fetch: Fetch{
			Workers:               defaultFetchWorkers,
			TimeoutSeconds:        defaultFetchTimeout,
			RetryMaxAttempts:      defaultFetchRetryAttempts,
			RetryBaseDelaySeconds: defaultFetchRetryBaseDelay,
			RetryMaxDelaySeconds:  defaultFetchRetryMaxDelay,
			MaxFileMiB:            defaultFetchMaxFileMiB,
		},
		Analysis: Analysis{
			BaseURL:               defaultAnalysisBaseURL,
			Model:                 defaultAnalysisModel,
			TimeoutSeconds:        defaultAnalysisTimeout,
			RetryMaxAttempts:      defaultAnalysisRetryAttempts,
			RetryBaseDelaySeconds: defaultAnalysisRetryBaseDelay,
			RetryMaxDelaySeconds:  defaultAnalysisRetryMaxDelay,
			Temperature:           defaultAnalysisTemperature,
			MaxTokens:             defaultAnalysisMaxTokens,
			MaxImages:             defaultAnalysisMaxImages,
			ContextBudgetChars:    defaultContextBudgetChars,
			MaxComments:           defaultMaxComments,
		},
		Pipeline: Pipeline{
			AnalysisWorkers:    defaultAnalysisWorkers,
			CheckpointInterval: defaultCheckpointInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
	}
}
