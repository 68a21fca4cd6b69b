package config

// Automation modes accepted by the [automation] section.
const (
	ModeOff             = "off"
	ModeScanOnly        = "scan_only"
	ModeScanAndOrganize = "scan_and_organize"
)

const (
	defaultDataDir                = "~/.local/share/shelf"
	defaultLogDir                 = "~/.local/share/shelf/logs"
	defaultTrashDir               = "~/.local/share/shelf/trash"
	defaultDownloadsDir           = "~/Downloads"
	defaultDesktopDir             = "~/Desktop"
	defaultDocumentsDir           = "~/Documents"
	defaultOrganizeRoot           = "~"
	defaultMode                   = ModeScanOnly
	defaultScanIntervalMinutes    = 15
	defaultScanTimeoutSeconds     = 30
	defaultDebounceSeconds        = 5
	defaultBacklogThreshold       = 25
	defaultMaxConsecutiveFailures = 3
	defaultMaxBackoffMultiplier   = 8
	defaultMinScanInterval        = 5
	defaultMaxScanInterval        = 240
	defaultUndoHistoryLimit       = 20
	defaultBatchDelayMillis       = 150
	defaultPredictTimeoutSeconds  = 5
	defaultConfidenceThreshold    = 0.7
	defaultNotifyRequestTimeout   = 10
	defaultNotifyDedupSeconds     = 600
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 60
)

var defaultIgnoreGlobs = []string{
	".*",
	"*.part",
	"*.crdownload",
	"*.download",
	"*.tmp",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			TrashDir: defaultTrashDir,
		},
		Folders: Folders{
			DownloadsDir: defaultDownloadsDir,
			DesktopDir:   defaultDesktopDir,
			DocumentsDir: defaultDocumentsDir,
			Ignore:       append([]string(nil), defaultIgnoreGlobs...),
			OrganizeRoot: defaultOrganizeRoot,
		},
		Automation: Automation{
			Mode:                   defaultMode,
			ScanIntervalMinutes:    defaultScanIntervalMinutes,
			ScanTimeoutSeconds:     defaultScanTimeoutSeconds,
			DebounceSeconds:        defaultDebounceSeconds,
			BacklogThreshold:       defaultBacklogThreshold,
			MaxConsecutiveFailures: defaultMaxConsecutiveFailures,
			MaxBackoffMultiplier:   defaultMaxBackoffMultiplier,
		},
		Features: Features{
			Automation:      true,
			AutoOrganize:    false,
			LearnedPatterns: true,
			Predictions:     false,
			Notifications:   true,
		},
		Safety: Safety{
			MinScanIntervalMinutes: defaultMinScanInterval,
			MaxScanIntervalMinutes: defaultMaxScanInterval,
			UndoHistoryLimit:       defaultUndoHistoryLimit,
			BatchDelayMillis:       defaultBatchDelayMillis,
			VerifyChecksums:        true,
		},
		Predictions: Predictions{
			TimeoutSeconds:      defaultPredictTimeoutSeconds,
			ConfidenceThreshold: defaultConfidenceThreshold,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			ScanComplete:       true,
			AutoOrganize:       true,
			Backlog:            true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
