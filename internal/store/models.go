package store

import (
	"strings"
	"time"
)

// RecordStatus represents the lifecycle of a discovered file.
type RecordStatus string

const (
	// StatusPending marks a discovered file with no destination suggestion yet.
	StatusPending RecordStatus = "pending"
	// StatusReady marks a file with a destination suggestion awaiting action.
	StatusReady RecordStatus = "ready"
	// StatusCompleted marks a file that has been organized.
	StatusCompleted RecordStatus = "completed"
	// StatusSkipped marks a file the user dismissed; it is never re-suggested.
	StatusSkipped RecordStatus = "skipped"
	// StatusMissing marks a record whose file vanished between scans. The row
	// stays until the caller removes it; a reappearing file is reclassified.
	StatusMissing RecordStatus = "missing"
)

var allStatuses = []RecordStatus{
	StatusPending,
	StatusReady,
	StatusCompleted,
	StatusSkipped,
	StatusMissing,
}

var statusSet = func() map[RecordStatus]struct{} {
	set := make(map[RecordStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known record statuses.
func AllStatuses() []RecordStatus {
	cp := make([]RecordStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known RecordStatus.
func ParseStatus(value string) (RecordStatus, bool) {
	normalized := RecordStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// SuggestionSource identifies which classifier proposed a destination.
type SuggestionSource string

const (
	SourceNone       SuggestionSource = "none"
	SourceRule       SuggestionSource = "rule"
	SourcePattern    SuggestionSource = "learned_pattern"
	SourcePrediction SuggestionSource = "ml_prediction"
)

// FileRecord represents a discovered file persisted in SQLite. The path is
// the immutable identity; classification state is mutated by the pipeline
// and completion state by the transfer service.
type FileRecord struct {
	ID                   int64
	Path                 string
	FolderID             int64
	Name                 string
	Extension            string
	SizeBytes            int64
	FileCreatedAt        time.Time
	FileModifiedAt       time.Time
	Status               RecordStatus
	SuggestedDestination string
	SuggestionSource     SuggestionSource
	SuggestionConfidence float64
	MatchedRuleID        int64
	ErrorMessage         string
	FirstSeenAt          time.Time
	UpdatedAt            time.Time
}

// HasSuggestion reports whether the record carries an actionable destination.
func (r FileRecord) HasSuggestion() bool {
	return r.SuggestedDestination != "" && r.SuggestionSource != SourceNone
}

// FolderType partitions watched folders into the well-known roots and
// user-added custom directories.
type FolderType string

const (
	FolderDownloads FolderType = "downloads"
	FolderDesktop   FolderType = "desktop"
	FolderDocuments FolderType = "documents"
	FolderCustom    FolderType = "custom"
)

// Folder is a watched directory with its access token and scan bookkeeping.
type Folder struct {
	ID         int64
	Name       string
	Type       FolderType
	Path       string
	Enabled    bool
	TokenJSON  string
	LastScanAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TransferOp identifies a ledger operation kind.
type TransferOp string

const (
	OpMove   TransferOp = "move"
	OpCopy   TransferOp = "copy"
	OpDelete TransferOp = "delete"
)

// TransferEntry is one completed operation in the undo ledger. For deletes
// DestinationPath holds the trash location the file was parked at.
type TransferEntry struct {
	ID              int64
	Operation       TransferOp
	SourcePath      string
	DestinationPath string
	RecordID        int64
	PerformedAt     time.Time
	Undone          bool
	UndoneAt        *time.Time
}

// PatternEvent records one observed file→destination association used by the
// learned-pattern source.
type PatternEvent struct {
	ID          int64
	Extension   string
	Name        string
	Destination string
	Source      SuggestionSource
	RecordedAt  time.Time
}

// PolicySnapshot is the last resolved automation policy, kept for diagnostics.
type PolicySnapshot struct {
	ID                     int64
	Mode                   string
	ScanIntervalMinutes    int
	BacklogThreshold       int
	ConfidenceThreshold    float64
	MaxConsecutiveFailures int
	CanScan                bool
	CanAutoOrganize        bool
	NotificationsEnabled   bool
	ResolvedAt             time.Time
}

// ScanMetrics summarizes one pipeline run.
type ScanMetrics struct {
	ID             int64
	ScanID         string
	Trigger        string
	StartedAt      time.Time
	FinishedAt     time.Time
	FilesSeen      int
	FilesNew       int
	FoldersScanned int
	FoldersFailed  int
	TimedOut       bool
	ErrorSummary   string
}

// AuditEvent is a fire-and-forget activity entry.
type AuditEvent struct {
	ID         int64
	EventType  string
	Subject    string
	Detail     string
	RecordedAt time.Time
}

// DatabaseHealth captures diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	IntegrityCheck   bool
	TotalRecords     int
	Error            string
}

// HealthSummary describes aggregated record counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Ready     int
	Completed int
	Skipped   int
	Missing   int
}
