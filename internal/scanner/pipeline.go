package scanner

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"shelf/internal/bookmarks"
	"shelf/internal/config"
	"shelf/internal/logging"
	"shelf/internal/rules"
	"shelf/internal/services"
	"shelf/internal/store"
)

// Suggestion is a proposed destination with the proposer's confidence.
type Suggestion struct {
	Destination string
	Confidence  float64
}

// PatternSource proposes destinations learned from the user's past organize
// decisions. Implementations apply their own confidence floor and report ok
// only for suggestions worth surfacing.
type PatternSource interface {
	Suggest(ctx context.Context, file rules.FileInfo) (Suggestion, bool)
}

// Predictor scores a destination statistically. The pipeline accepts its
// answer only when the confidence clears the policy threshold.
type Predictor interface {
	Predict(ctx context.Context, file rules.FileInfo) (Suggestion, error)
}

// Result summarizes one pipeline run.
type Result struct {
	ScanID         string
	Trigger        string
	Files          []*store.FileRecord
	RawErrors      map[string]error
	ErrorSummary   string
	TimedOut       bool
	StartedAt      time.Time
	FinishedAt     time.Time
	FilesSeen      int
	FilesNew       int
	FoldersScanned int
}

// RunOptions tunes a single pipeline run.
type RunOptions struct {
	// Trigger names what started the scan: manual, scheduled, volume, startup.
	Trigger string
	// ConfidenceThreshold gates predictor suggestions. Zero falls back to the
	// configured default.
	ConfidenceThreshold float64
}

// Pipeline coordinates folder access, rule evaluation, and record
// persistence for one scan at a time.
type Pipeline struct {
	store     *store.Store
	provider  *bookmarks.Provider
	engine    *rules.Engine
	patterns  PatternSource
	predictor Predictor
	cfg       *config.Config
	logger    *slog.Logger
}

// NewPipeline wires the pipeline's collaborators. Pattern source and
// predictor may be nil; the corresponding precedence steps are skipped.
func NewPipeline(
	st *store.Store,
	provider *bookmarks.Provider,
	engine *rules.Engine,
	patterns PatternSource,
	predictor Predictor,
	cfg *config.Config,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		store:     st,
		provider:  provider,
		engine:    engine,
		patterns:  patterns,
		predictor: predictor,
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "scanner"),
	}
}

// Run scans every enabled folder and persists the refreshed records. The
// returned Result is non-nil whenever scanning started, even if every folder
// failed or the deadline cut the pass short.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	scanID := uuid.NewString()
	ctx = services.WithScanID(ctx, scanID)
	logger := logging.WithContext(ctx, p.logger)

	threshold := opts.ConfidenceThreshold
	if threshold <= 0 {
		threshold = p.cfg.Predictions.ConfidenceThreshold
	}

	timeout := time.Duration(p.cfg.Automation.ScanTimeoutSeconds) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result := &Result{
		ScanID:    scanID,
		Trigger:   opts.Trigger,
		RawErrors: make(map[string]error),
		StartedAt: time.Now().UTC(),
	}

	ruleset, err := p.store.EnabledRules(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scanner", "load rules", "", err)
	}
	folders, err := p.store.EnabledFolders(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scanner", "load folders", "", err)
	}

	logger.Info("scan started",
		logging.String("trigger", opts.Trigger),
		logging.Int("folders", len(folders)),
		logging.Int("rules", len(ruleset)),
	)

	for _, folder := range folders {
		if ctx.Err() != nil {
			result.TimedOut = true
			break
		}
		if err := p.scanFolder(ctx, folder, ruleset, threshold, result); err != nil {
			result.RawErrors[folder.Name] = err
			logging.ErrorWithContext(logger, "folder scan failed", "folder_scan_failed",
				logging.String(logging.FieldFolder, folder.Name),
				logging.Error(err),
			)
			continue
		}
		if result.TimedOut {
			// Folder was cut short mid-pass; keep what was collected.
			break
		}
		result.FoldersScanned++
	}
	if ctx.Err() != nil {
		result.TimedOut = true
	}

	result.FinishedAt = time.Now().UTC()
	result.ErrorSummary = summarizeErrors(result.RawErrors)

	p.recordMetrics(result)

	logger.Info("scan complete",
		logging.String("trigger", opts.Trigger),
		logging.Int("files_seen", result.FilesSeen),
		logging.Int("files_new", result.FilesNew),
		logging.Int("folders_scanned", result.FoldersScanned),
		logging.Int("folders_failed", len(result.RawErrors)),
		logging.Bool("timed_out", result.TimedOut),
		logging.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

func (p *Pipeline) scanFolder(ctx context.Context, folder *store.Folder, ruleset []rules.Rule, threshold float64, result *Result) error {
	handle, err := p.provider.Resolve(folder)
	if err != nil {
		return err
	}
	defer handle.Close()

	entries, err := handle.Enumerate()
	if err != nil {
		return services.Wrap(services.ErrTransient, "scanner", "enumerate", folder.Name, err)
	}

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			result.TimedOut = true
			return nil
		}
		if !entry.IsRegular || p.ignored(entry.Name) {
			continue
		}
		seen[entry.Path] = struct{}{}
		result.FilesSeen++

		record := p.classify(ctx, entry, folder, ruleset, threshold)
		stored, err := p.store.UpsertRecord(ctx, record)
		if err != nil {
			if ctx.Err() != nil {
				result.TimedOut = true
				return nil
			}
			return services.Wrap(services.ErrTransient, "scanner", "persist record", entry.Name, err)
		}
		if !stored.FirstSeenAt.Before(result.StartedAt) {
			result.FilesNew++
		}
		result.Files = append(result.Files, stored)
	}

	if _, err := p.store.MarkMissing(ctx, folder.ID, seen); err != nil {
		if ctx.Err() != nil {
			result.TimedOut = true
			return nil
		}
		return services.Wrap(services.ErrTransient, "scanner", "mark missing records", folder.Name, err)
	}
	if err := p.store.UpdateFolderScanned(ctx, folder.ID, time.Now().UTC()); err != nil {
		if ctx.Err() != nil {
			result.TimedOut = true
			return nil
		}
		return services.Wrap(services.ErrTransient, "scanner", "stamp folder", folder.Name, err)
	}
	return nil
}

// classify attaches a destination suggestion using the precedence
// rule > learned pattern > prediction, short-circuiting at the first hit.
func (p *Pipeline) classify(ctx context.Context, entry bookmarks.Entry, folder *store.Folder, ruleset []rules.Rule, threshold float64) *store.FileRecord {
	record := &store.FileRecord{
		Path:           entry.Path,
		FolderID:       folder.ID,
		Name:           entry.Name,
		Extension:      entry.Extension,
		SizeBytes:      entry.SizeBytes,
		FileCreatedAt:  entry.CreatedAt,
		FileModifiedAt: entry.ModifiedAt,
		Status:         store.StatusPending,
	}

	file := rules.FileInfo{
		Name:       entry.Name,
		Extension:  entry.Extension,
		SizeBytes:  entry.SizeBytes,
		CreatedAt:  entry.CreatedAt,
		ModifiedAt: entry.ModifiedAt,
	}

	if match, ok := p.engine.Evaluate(file, ruleset); ok {
		record.Status = store.StatusReady
		record.SuggestedDestination = match.Destination
		record.SuggestionSource = store.SourceRule
		record.SuggestionConfidence = 1
		record.MatchedRuleID = match.Rule.ID
		return record
	}

	if p.patterns != nil {
		if suggestion, ok := p.patterns.Suggest(ctx, file); ok {
			record.Status = store.StatusReady
			record.SuggestedDestination = suggestion.Destination
			record.SuggestionSource = store.SourcePattern
			record.SuggestionConfidence = suggestion.Confidence
			return record
		}
	}

	if p.predictor != nil {
		suggestion, err := p.predictor.Predict(ctx, file)
		if err != nil {
			p.logger.Debug("prediction unavailable",
				logging.String("file", entry.Name),
				logging.Error(err),
			)
			return record
		}
		if suggestion.Destination != "" && suggestion.Confidence >= threshold {
			record.Status = store.StatusReady
			record.SuggestedDestination = suggestion.Destination
			record.SuggestionSource = store.SourcePrediction
			record.SuggestionConfidence = suggestion.Confidence
		}
	}
	return record
}

func (p *Pipeline) ignored(name string) bool {
	lowered := strings.ToLower(name)
	for _, pattern := range p.cfg.Folders.Ignore {
		if matched, err := doublestar.Match(strings.ToLower(pattern), lowered); err == nil && matched {
			return true
		}
	}
	return false
}

// summarizeErrors renders the failed folder names sorted alphabetically.
// Empty when every folder succeeded.
func summarizeErrors(rawErrors map[string]error) string {
	if len(rawErrors) == 0 {
		return ""
	}
	names := make([]string, 0, len(rawErrors))
	for name := range rawErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (p *Pipeline) recordMetrics(result *Result) {
	metrics := &store.ScanMetrics{
		ScanID:         result.ScanID,
		Trigger:        result.Trigger,
		StartedAt:      result.StartedAt,
		FinishedAt:     result.FinishedAt,
		FilesSeen:      result.FilesSeen,
		FilesNew:       result.FilesNew,
		FoldersScanned: result.FoldersScanned,
		FoldersFailed:  len(result.RawErrors),
		TimedOut:       result.TimedOut,
		ErrorSummary:   result.ErrorSummary,
	}
	// Metrics persist outside the scan deadline so a timed-out pass still
	// leaves its summary behind.
	if err := p.store.RecordScanMetrics(context.Background(), metrics); err != nil {
		p.logger.Warn("cannot record scan metrics", logging.Error(err))
	}
}
