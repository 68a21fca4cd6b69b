package transfer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"shelf/internal/fileutil"
	"shelf/internal/logging"
	"shelf/internal/services"
	"shelf/internal/store"
)

// UndoLast reverses the most recent operation still marked done. Moves and
// trashed deletes move the file back; an undone copy removes the duplicate.
// The ledger entry flips to undone so RedoLast can replay it.
func (s *Service) UndoLast(ctx context.Context) (*store.TransferEntry, error) {
	entry, err := s.store.LatestUndoable(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transfer", "undo", "load ledger", err)
	}
	if entry == nil {
		return nil, services.Wrap(services.ErrNotFound, "transfer", "undo", "nothing to undo", nil)
	}

	switch entry.Operation {
	case store.OpCopy:
		// The source was never touched; undoing removes the duplicate.
		if err := os.Remove(entry.DestinationPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrTransient, "transfer", "undo", "remove copy", err)
		}
	default:
		// Moves and deletes both parked the file at DestinationPath.
		if err := s.reverse(entry.DestinationPath, entry.SourcePath); err != nil {
			return nil, err
		}
	}

	if err := s.store.MarkTransferUndone(ctx, entry.ID); err != nil {
		return nil, services.Wrap(services.ErrTransient, "transfer", "undo", "mark ledger entry", err)
	}

	s.logger.Info("transfer undone",
		logging.String("operation", string(entry.Operation)),
		logging.String("restored_to", entry.SourcePath),
	)
	return s.store.GetTransfer(ctx, entry.ID)
}

// RedoLast replays the most recently undone operation and flips its ledger
// entry back to done.
func (s *Service) RedoLast(ctx context.Context) (*store.TransferEntry, error) {
	entry, err := s.store.LatestRedoable(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transfer", "redo", "load ledger", err)
	}
	if entry == nil {
		return nil, services.Wrap(services.ErrNotFound, "transfer", "redo", "nothing to redo", nil)
	}

	switch entry.Operation {
	case store.OpCopy:
		if err := s.copyNoReplace(entry.SourcePath, entry.DestinationPath); err != nil {
			return nil, err
		}
	default:
		if err := s.reverse(entry.SourcePath, entry.DestinationPath); err != nil {
			return nil, err
		}
	}

	if err := s.store.MarkTransferRedone(ctx, entry.ID); err != nil {
		return nil, services.Wrap(services.ErrTransient, "transfer", "redo", "mark ledger entry", err)
	}

	s.logger.Info("transfer redone",
		logging.String("operation", string(entry.Operation)),
		logging.String("destination", entry.DestinationPath),
	)
	return s.store.GetTransfer(ctx, entry.ID)
}

// reverse moves a ledgered file between its two recorded locations. Ledger
// paths were validated when the entry was written, so only the type gate and
// the no-replace rules re-apply.
func (s *Service) reverse(from, to string) error {
	info, err := checkSource("reverse transfer", from)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(to); dir != "" && !fileutil.Exists(dir) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrTransient, "transfer", "reverse transfer", "recreate parent", err)
		}
	}
	if err := s.rename(from, to, info.IsDir()); err != nil {
		return err
	}
	return verifyMoved(from, to)
}
