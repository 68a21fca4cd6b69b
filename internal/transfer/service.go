package transfer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"shelf/internal/bookmarks"
	"shelf/internal/config"
	"shelf/internal/fileutil"
	"shelf/internal/logging"
	"shelf/internal/patterns"
	"shelf/internal/rules"
	"shelf/internal/services"
	"shelf/internal/store"
)

const defaultUndoLimit = 20

// Service executes file operations against the scoped-access rules and
// keeps the undo ledger. One Service is shared by the scheduler and IPC.
type Service struct {
	store    *store.Store
	provider *bookmarks.Provider
	patterns *patterns.Source
	cfg      *config.Config
	logger   *slog.Logger
}

// NewService wires the transfer service. The pattern source may be nil;
// completed operations are then not remembered.
func NewService(st *store.Store, provider *bookmarks.Provider, patternsSource *patterns.Source, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		provider: provider,
		patterns: patternsSource,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "transfer"),
	}
}

// Move relocates source to the destination path. The destination must fall
// inside a registered folder; its parents are created inside that scope.
func (s *Service) Move(ctx context.Context, source, destination string) error {
	return s.run(ctx, store.OpMove, source, destination, 0)
}

// Copy duplicates source at the destination path under the same validation
// as Move. The source is left untouched.
func (s *Service) Copy(ctx context.Context, source, destination string) error {
	return s.run(ctx, store.OpCopy, source, destination, 0)
}

// Delete parks source in the trash directory so the operation stays
// reversible. The ledger records the trash location.
func (s *Service) Delete(ctx context.Context, source string) error {
	return s.trash(ctx, source, 0)
}

// Apply executes a ready record's suggestion: the matched rule's action, or
// a move for pattern and prediction suggestions. On success the record is
// completed and the decision feeds the learned patterns.
func (s *Service) Apply(ctx context.Context, recordID int64) error {
	record, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "transfer", "apply", "load record", err)
	}
	if record == nil {
		return services.Wrap(services.ErrNotFound, "transfer", "apply", "record does not exist", nil)
	}
	if record.Status != store.StatusReady {
		return services.Wrap(services.ErrValidation, "transfer", "apply", "record is not awaiting action", nil)
	}

	ctx = services.WithRecordID(ctx, record.ID)
	action := store.OpMove
	if record.MatchedRuleID != 0 {
		if rule, err := s.store.GetRule(ctx, record.MatchedRuleID); err == nil && rule != nil {
			switch rule.Action {
			case rules.ActionCopy:
				action = store.OpCopy
			case rules.ActionDelete:
				action = store.OpDelete
			}
		}
	}
	// Delete rules carry no destination; every other action needs one.
	if action != store.OpDelete && !record.HasSuggestion() {
		return services.Wrap(services.ErrValidation, "transfer", "apply", "record has no actionable suggestion", nil)
	}

	switch action {
	case store.OpDelete:
		err = s.trash(ctx, record.Path, record.ID)
	default:
		destination := filepath.Join(s.destinationDir(record.SuggestedDestination), record.Name)
		err = s.run(ctx, action, record.Path, destination, record.ID)
	}
	if err != nil {
		return err
	}

	if err := s.store.MarkRecordCompleted(ctx, record.ID); err != nil {
		return services.Wrap(services.ErrTransient, "transfer", "apply", "mark record completed", err)
	}
	if s.patterns != nil && action != store.OpDelete {
		if err := s.patterns.Remember(ctx, record, record.SuggestedDestination); err != nil {
			s.logger.Warn("cannot remember organize decision",
				logging.Int64(logging.FieldRecordID, record.ID),
				logging.Error(err),
			)
		}
	}
	return nil
}

// ApplyResult is one record's outcome within a batch.
type ApplyResult struct {
	RecordID    int64
	Name        string
	Destination string
	Err         error
}

// ApplyBatch applies each record in turn with a cooperative delay between
// operations. A failure is reported per record and never aborts the batch;
// cancellation stops between operations with partial results returned.
func (s *Service) ApplyBatch(ctx context.Context, records []*store.FileRecord) []ApplyResult {
	delay := time.Duration(s.cfg.Safety.BatchDelayMillis) * time.Millisecond
	results := make([]ApplyResult, 0, len(records))
	for i, record := range records {
		if ctx.Err() != nil {
			break
		}
		result := ApplyResult{
			RecordID:    record.ID,
			Name:        record.Name,
			Destination: record.SuggestedDestination,
		}
		result.Err = s.Apply(ctx, record.ID)
		results = append(results, result)

		if delay > 0 && i < len(records)-1 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(delay):
			}
		}
	}
	return results
}

// run is the shared move/copy pipeline: scope the destination, validate the
// source, create parents inside the scoped handle, perform the no-replace
// operation, verify post-conditions, and append the ledger entry.
func (s *Service) run(ctx context.Context, op store.TransferOp, source, destination string, recordID int64) error {
	folder, rel, err := s.scopeFor(ctx, destination)
	if err != nil {
		return err
	}
	handle, err := s.provider.Resolve(folder)
	if err != nil {
		return err
	}
	defer handle.Close()

	srcInfo, err := checkSource("validate source", source)
	if err != nil {
		return err
	}
	if op == store.OpCopy && srcInfo.IsDir() {
		return services.Wrap(services.ErrValidation, "transfer", "copy", "directories cannot be copied", nil)
	}

	if relDir := filepath.Dir(rel); relDir != "." && relDir != "" {
		if err := handle.Root().MkdirAll(relDir, 0o755); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return newError(KindAccessDenied, services.ErrSecurity, "create destination parents", destination, err)
			}
			return services.Wrap(services.ErrTransient, "transfer", "create destination parents", destination, err)
		}
	}

	switch op {
	case store.OpCopy:
		if err := s.copyNoReplace(source, destination); err != nil {
			return err
		}
		if err := verifyPresent("verify copy", destination); err != nil {
			return err
		}
	default:
		if err := s.rename(source, destination, srcInfo.IsDir()); err != nil {
			return err
		}
		if err := verifyMoved(source, destination); err != nil {
			return err
		}
	}

	entry := &store.TransferEntry{
		Operation:       op,
		SourcePath:      source,
		DestinationPath: destination,
		RecordID:        recordID,
	}
	if _, err := s.store.AppendTransfer(ctx, entry, s.undoLimit()); err != nil {
		return services.Wrap(services.ErrTransient, "transfer", "append ledger", destination, err)
	}

	logging.WithContext(ctx, s.logger).Info("transfer complete",
		logging.String("operation", string(op)),
		logging.String("source", source),
		logging.String("destination", destination),
		logging.String(logging.FieldFolder, folder.Name),
	)
	return nil
}

// trash moves source into the trash directory under a name that never
// collides with earlier trashed files.
func (s *Service) trash(ctx context.Context, source string, recordID int64) error {
	srcInfo, err := checkSource("validate source", source)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.cfg.Paths.TrashDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "transfer", "create trash dir", s.cfg.Paths.TrashDir, err)
	}

	trashPath := fileutil.UniquePath(s.cfg.Paths.TrashDir, filepath.Base(source))
	if err := s.rename(source, trashPath, srcInfo.IsDir()); err != nil {
		return err
	}
	if err := verifyMoved(source, trashPath); err != nil {
		return err
	}

	entry := &store.TransferEntry{
		Operation:       store.OpDelete,
		SourcePath:      source,
		DestinationPath: trashPath,
		RecordID:        recordID,
	}
	if _, err := s.store.AppendTransfer(ctx, entry, s.undoLimit()); err != nil {
		return services.Wrap(services.ErrTransient, "transfer", "append ledger", trashPath, err)
	}

	logging.WithContext(ctx, s.logger).Info("file moved to trash",
		logging.String("source", source),
		logging.String("trash_path", trashPath),
	)
	return nil
}

// scopeFor locates the registered folder containing path. The longest
// matching folder wins so nested custom folders scope correctly.
func (s *Service) scopeFor(ctx context.Context, path string) (*store.Folder, string, error) {
	folders, err := s.store.EnabledFolders(ctx)
	if err != nil {
		return nil, "", services.Wrap(services.ErrTransient, "transfer", "load folders", "", err)
	}

	clean := filepath.Clean(path)
	var best *store.Folder
	var bestRel string
	for _, folder := range folders {
		rel, err := filepath.Rel(folder.Path, clean)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if best == nil || len(folder.Path) > len(best.Path) {
			best = folder
			bestRel = rel
		}
	}
	if best == nil {
		return nil, "", newError(KindOutsideScope, services.ErrSecurity, "validate destination", path, nil)
	}
	return best, bestRel, nil
}

// destinationDir resolves a suggestion into an absolute directory.
// Suggestions are relative to the organize root; absolute ones pass through.
func (s *Service) destinationDir(suggestion string) string {
	if filepath.IsAbs(suggestion) {
		return filepath.Clean(suggestion)
	}
	return filepath.Join(s.cfg.Folders.OrganizeRoot, suggestion)
}

func (s *Service) undoLimit() int {
	if limit := s.cfg.Safety.UndoHistoryLimit; limit > 0 {
		return limit
	}
	return defaultUndoLimit
}

// checkSource gates the source by type: regular files and directories are
// eligible, everything else is rejected with a security-classed error.
func checkSource(op, source string) (os.FileInfo, error) {
	info, err := os.Lstat(source)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, newError(KindSourceMissing, services.ErrNotFound, op, source, err)
		case errors.Is(err, fs.ErrPermission):
			return nil, newError(KindAccessDenied, services.ErrSecurity, op, source, err)
		default:
			return nil, services.Wrap(services.ErrTransient, "transfer", op, source, err)
		}
	}

	mode := info.Mode()
	switch {
	case mode&fs.ModeSymlink != 0:
		return nil, newError(KindSymlinkRejected, services.ErrSecurity, op, source, nil)
	case mode&fs.ModeDevice != 0 || mode&fs.ModeCharDevice != 0:
		return nil, newError(KindDeviceNodeRejected, services.ErrSecurity, op, source, nil)
	case mode&fs.ModeNamedPipe != 0:
		return nil, newError(KindFIFORejected, services.ErrSecurity, op, source, nil)
	case mode.IsRegular() || mode.IsDir():
		return info, nil
	default:
		// Sockets and any other special mode fall under the device class.
		return nil, newError(KindDeviceNodeRejected, services.ErrSecurity, op, source, nil)
	}
}

// rename performs the no-replace move. Cross-volume moves fall back to
// verified copy plus source removal; filesystems without rename flags get a
// lstat-guarded plain rename.
func (s *Service) rename(source, destination string, isDir bool) error {
	err := unix.Renameat2(unix.AT_FDCWD, source, unix.AT_FDCWD, destination, unix.RENAME_NOREPLACE)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EEXIST) || errors.Is(err, unix.ENOTEMPTY):
		return newError(KindDestinationExists, services.ErrValidation, "rename", destination, err)
	case errors.Is(err, unix.EXDEV):
		return s.crossDeviceMove(source, destination, isDir)
	case errors.Is(err, unix.EINVAL):
		if fileutil.Exists(destination) {
			return newError(KindDestinationExists, services.ErrValidation, "rename", destination, nil)
		}
		if rerr := os.Rename(source, destination); rerr != nil {
			return services.Wrap(services.ErrTransient, "transfer", "rename", destination, rerr)
		}
		return nil
	case errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM):
		return newError(KindAccessDenied, services.ErrSecurity, "rename", destination, err)
	case errors.Is(err, unix.ENOENT):
		return newError(KindSourceMissing, services.ErrNotFound, "rename", source, err)
	default:
		return services.Wrap(services.ErrTransient, "transfer", "rename", destination, err)
	}
}

func (s *Service) crossDeviceMove(source, destination string, isDir bool) error {
	if isDir {
		return services.Wrap(services.ErrValidation, "transfer", "rename", "cross-volume directory moves are not supported", nil)
	}
	if err := s.copyNoReplace(source, destination); err != nil {
		return err
	}
	if err := os.Remove(source); err != nil {
		return services.Wrap(services.ErrTransient, "transfer", "remove source after copy", source, err)
	}
	return nil
}

func (s *Service) copyNoReplace(source, destination string) error {
	err := fileutil.CopyFileVerified(source, destination, s.cfg.Safety.VerifyChecksums)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return newError(KindDestinationExists, services.ErrValidation, "copy", destination, err)
	case errors.Is(err, fs.ErrPermission):
		return newError(KindAccessDenied, services.ErrSecurity, "copy", destination, err)
	default:
		return services.Wrap(services.ErrTransient, "transfer", "copy", destination, err)
	}
}

// verifyMoved enforces the move post-conditions: source gone, destination
// present. Violations surface as verification failures, never silently.
func verifyMoved(source, destination string) error {
	if fileutil.Exists(source) {
		return newError(KindVerificationFailed, services.ErrTransient, "verify move", source,
			errors.New("source still present after move"))
	}
	return verifyPresent("verify move", destination)
}

func verifyPresent(op, destination string) error {
	if !fileutil.Exists(destination) {
		return newError(KindVerificationFailed, services.ErrTransient, op, destination,
			errors.New("destination absent after operation"))
	}
	return nil
}
