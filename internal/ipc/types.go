package ipc

import "time"

// StartRequest starts background processing.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops background processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// SchedulerStatus mirrors the automation scheduler state for IPC callers.
type SchedulerStatus struct {
	Running           bool   `json:"running"`
	Paused            bool   `json:"paused"`
	Lifecycle         string `json:"lifecycle"`
	Mode              string `json:"mode"`
	Failures          int    `json:"failures"`
	LastScanAt        string `json:"last_scan_at"`
	NextScanAt        string `json:"next_scan_at"`
	EffectiveInterval string `json:"effective_interval"`
}

// StatusResponse represents combined daemon and scheduler status.
type StatusResponse struct {
	Running          bool            `json:"running"`
	Scheduler        SchedulerStatus `json:"scheduler"`
	RecordStats      map[string]int  `json:"record_stats"`
	DBPath           string          `json:"db_path"`
	LockPath         string          `json:"lock_path"`
	SocketPath       string          `json:"socket_path"`
	PID              int             `json:"pid"`
	VolumeMonitoring bool            `json:"volume_monitoring"`
	AuditDropped     int64           `json:"audit_dropped"`
}

// ScanRequest asks the scheduler for an out-of-band scan.
type ScanRequest struct {
	Reason string `json:"reason"`
}

// ScanResponse acknowledges the scan trigger. The scan itself runs
// asynchronously behind the scheduler's debounce window.
type ScanResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// PauseRequest suspends scheduled and triggered scans.
type PauseRequest struct{}

// PauseResponse acknowledges the pause.
type PauseResponse struct {
	Paused bool `json:"paused"`
}

// ResumeRequest lifts a pause.
type ResumeRequest struct{}

// ResumeResponse acknowledges the resume.
type ResumeResponse struct {
	Resumed bool `json:"resumed"`
}

// LifecycleRequest reports a desktop session transition.
type LifecycleRequest struct {
	State string `json:"state"`
}

// LifecycleResponse acknowledges the lifecycle change.
type LifecycleResponse struct {
	Applied bool `json:"applied"`
}

// FileRecord is the IPC view of a tracked file.
type FileRecord struct {
	ID                   int64     `json:"id"`
	Path                 string    `json:"path"`
	FolderID             int64     `json:"folder_id"`
	Name                 string    `json:"name"`
	Extension            string    `json:"extension"`
	SizeBytes            int64     `json:"size_bytes"`
	Status               string    `json:"status"`
	SuggestedDestination string    `json:"suggested_destination"`
	SuggestionSource     string    `json:"suggestion_source"`
	SuggestionConfidence float64   `json:"suggestion_confidence"`
	MatchedRuleID        int64     `json:"matched_rule_id"`
	ErrorMessage         string    `json:"error_message"`
	FileModifiedAt       time.Time `json:"file_modified_at"`
	FirstSeenAt          time.Time `json:"first_seen_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// RecordsListRequest filters the record listing by status.
type RecordsListRequest struct {
	Statuses []string `json:"statuses"`
}

// RecordsListResponse contains tracked file records.
type RecordsListResponse struct {
	Records []FileRecord `json:"records"`
}

// RecordDescribeRequest fetches a single record by id.
type RecordDescribeRequest struct {
	ID int64 `json:"id"`
}

// RecordDescribeResponse contains a single record.
type RecordDescribeResponse struct {
	Record FileRecord `json:"record"`
}

// RecordSkipRequest dismisses a record so it is never re-suggested.
type RecordSkipRequest struct {
	ID int64 `json:"id"`
}

// RecordSkipResponse acknowledges the skip.
type RecordSkipResponse struct {
	Skipped bool `json:"skipped"`
}

// Rule is the IPC view of an organization rule.
type Rule struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Action      string `json:"action"`
	Destination string `json:"destination"`
	SortOrder   int    `json:"sort_order"`
	Conditions  string `json:"conditions"`
	Exclusions  string `json:"exclusions"`
}

// RulesListRequest fetches the stored ruleset.
type RulesListRequest struct{}

// RulesListResponse contains rules in evaluation order.
type RulesListResponse struct {
	Rules []Rule `json:"rules"`
}

// Folder is the IPC view of a watched folder.
type Folder struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Path       string `json:"path"`
	Enabled    bool   `json:"enabled"`
	HasToken   bool   `json:"has_token"`
	LastScanAt string `json:"last_scan_at"`
}

// FoldersListRequest fetches registered watched folders.
type FoldersListRequest struct{}

// FoldersListResponse contains watched folders.
type FoldersListResponse struct {
	Folders []Folder `json:"folders"`
}

// FolderEnableRequest flips a watched folder by name.
type FolderEnableRequest struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// FolderEnableResponse returns the updated folder.
type FolderEnableResponse struct {
	Folder Folder `json:"folder"`
}

// ApplyRequest organizes ready records. An empty id list applies all of them.
type ApplyRequest struct {
	IDs []int64 `json:"ids"`
}

// ApplyOutcome reports the result of organizing one record.
type ApplyOutcome struct {
	RecordID    int64  `json:"record_id"`
	Name        string `json:"name"`
	Destination string `json:"destination"`
	Error       string `json:"error"`
}

// ApplyResponse contains per-record organization outcomes.
type ApplyResponse struct {
	Results []ApplyOutcome `json:"results"`
}

// TransferEntry is the IPC view of one undo-ledger entry.
type TransferEntry struct {
	ID              int64     `json:"id"`
	Operation       string    `json:"operation"`
	SourcePath      string    `json:"source_path"`
	DestinationPath string    `json:"destination_path"`
	RecordID        int64     `json:"record_id"`
	PerformedAt     time.Time `json:"performed_at"`
	Undone          bool      `json:"undone"`
}

// UndoRequest reverses the most recent completed transfer.
type UndoRequest struct{}

// UndoResponse contains the reversed ledger entry.
type UndoResponse struct {
	Entry TransferEntry `json:"entry"`
}

// RedoRequest re-applies the most recently undone transfer.
type RedoRequest struct{}

// RedoResponse contains the re-applied ledger entry.
type RedoResponse struct {
	Entry TransferEntry `json:"entry"`
}

// HistoryRequest fetches recent ledger entries, newest first.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains ledger entries.
type HistoryResponse struct {
	Entries []TransferEntry `json:"entries"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    string `json:"schema_version"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	TotalRecords     int    `json:"total_records"`
	Error            string `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
