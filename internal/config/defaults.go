package config

const (
	defaultDataDir              = "~/.local/share/docbridge"
	defaultLogDir               = "~/.local/share/docbridge/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultMinFileSize          = 1024
	defaultDiscoveryInterval    = 600
	defaultSubmissionInterval   = 120
	defaultPollingInterval      = 120
	defaultSubmissionBatchSize  = 50
	defaultPollingBatchSize     = 50
	defaultPollRequestDelayMS   = 200
	defaultUploadTimeout        = 60
	defaultStatusTimeout        = 30
	defaultNotifyRequestTimeout = 10
	defaultArchiveBucket        = "docbridge-archive"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Discovery: Discovery{
			MinFileSize: defaultMinFileSize,
			Interval:    defaultDiscoveryInterval,
		},
		Ingest: Ingest{
			UploadTimeout: defaultUploadTimeout,
			StatusTimeout: defaultStatusTimeout,
		},
		Submission: Submission{
			BatchSize: defaultSubmissionBatchSize,
			Interval:  defaultSubmissionInterval,
		},
		Polling: Polling{
			BatchSize:      defaultPollingBatchSize,
			Interval:       defaultPollingInterval,
			RequestDelayMS: defaultPollRequestDelayMS,
		},
		Archive: Archive{
			Bucket: defaultArchiveBucket,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
