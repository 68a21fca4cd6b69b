package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"shelf/internal/config"
	"shelf/internal/logging"
	"shelf/internal/services"
	"shelf/internal/store"
)

// Provider issues, validates, and resolves folder access tokens backed by
// the folders table.
type Provider struct {
	store  *store.Store
	logger *slog.Logger
}

// NewProvider builds a Provider. A nil logger falls back to a no-op logger.
func NewProvider(st *store.Store, logger *slog.Logger) *Provider {
	return &Provider{
		store:  st,
		logger: logging.NewComponentLogger(logger, "bookmarks"),
	}
}

// EnsureDefaults registers the configured roots as watched folders, minting
// tokens for directories that exist. Existing registrations keep their
// tokens unless the configured path moved.
func (p *Provider) EnsureDefaults(ctx context.Context, cfg *config.Config) error {
	type root struct {
		name       string
		folderType store.FolderType
		path       string
	}

	roots := []root{
		{"Downloads", store.FolderDownloads, cfg.Folders.DownloadsDir},
		{"Desktop", store.FolderDesktop, cfg.Folders.DesktopDir},
		{"Documents", store.FolderDocuments, cfg.Folders.DocumentsDir},
	}
	for _, watch := range cfg.Folders.Watch {
		name := filepath.Base(watch)
		if name == "." || name == string(filepath.Separator) {
			name = watch
		}
		roots = append(roots, root{name, store.FolderCustom, watch})
	}

	for _, r := range roots {
		if strings.TrimSpace(r.path) == "" {
			continue
		}
		if err := p.ensureFolder(ctx, r.name, r.folderType, r.path); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) ensureFolder(ctx context.Context, name string, folderType store.FolderType, path string) error {
	existing, err := p.store.GetFolderByName(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.Path == path && existing.TokenJSON != "" {
		return nil
	}
	if existing != nil && existing.Path != path {
		p.logger.Info("watched folder moved",
			logging.String(logging.FieldFolder, name),
			logging.String("old_path", existing.Path),
			logging.String("new_path", path),
		)
	}

	tokenJSON := ""
	if token, err := IssueToken(path); err != nil {
		p.logger.Warn("cannot issue folder token",
			logging.String(logging.FieldFolder, name),
			logging.String("path", path),
			logging.Error(err),
		)
	} else {
		if tokenJSON, err = token.Encode(); err != nil {
			return err
		}
	}

	enabled := true
	if existing != nil {
		enabled = existing.Enabled
	}
	_, err = p.store.UpsertFolder(ctx, &store.Folder{
		Name:      name,
		Type:      folderType,
		Path:      path,
		Enabled:   enabled,
		TokenJSON: tokenJSON,
	})
	return err
}

// Refresh re-issues the token for a folder and persists it. Used after the
// user re-grants access to a moved or replaced directory.
func (p *Provider) Refresh(ctx context.Context, folder *store.Folder) (*store.Folder, error) {
	if folder == nil {
		return nil, errors.New("folder is nil")
	}
	token, err := IssueToken(folder.Path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "bookmarks", "refresh token", "cannot issue token", err)
	}
	tokenJSON, err := token.Encode()
	if err != nil {
		return nil, err
	}
	if err := p.store.UpdateFolderToken(ctx, folder.ID, tokenJSON); err != nil {
		return nil, err
	}
	return p.store.GetFolder(ctx, folder.ID)
}

// Resolve validates the folder's token against its recorded path and opens a
// scoped handle. Every failure mode is terminal for this folder's scan; the
// caller reports it rather than retrying with an unscoped fallback.
func (p *Provider) Resolve(folder *store.Folder) (*Handle, error) {
	if folder == nil {
		return nil, errors.New("folder is nil")
	}

	if strings.TrimSpace(folder.TokenJSON) == "" {
		return nil, services.Wrap(services.ErrSecurity, "bookmarks", "resolve access",
			fmt.Sprintf("folder %q has no access token", folder.Name), nil)
	}
	token, err := DecodeToken(folder.TokenJSON)
	if err != nil {
		return nil, services.Wrap(services.ErrSecurity, "bookmarks", "resolve access",
			fmt.Sprintf("folder %q token is invalid", folder.Name), err)
	}
	if filepath.Clean(token.Path) != filepath.Clean(folder.Path) {
		p.logger.Error("token path mismatch",
			logging.String(logging.FieldFolder, folder.Name),
			logging.String("token_path", token.Path),
			logging.String("expected_path", folder.Path),
			logging.String(logging.FieldErrorHint, "token was issued for a different directory; re-grant access"),
		)
		return nil, services.Wrap(services.ErrSecurity, "bookmarks", "resolve access",
			fmt.Sprintf("folder %q token points at %q, expected %q", folder.Name, token.Path, folder.Path), nil)
	}

	current, err := IssueToken(folder.Path)
	if err != nil {
		return nil, classifyStatFailure(folder.Name, err)
	}
	if current.Device != token.Device || current.Inode != token.Inode {
		return nil, services.Wrap(services.ErrSecurity, "bookmarks", "resolve access",
			fmt.Sprintf("folder %q token is stale; the directory was replaced", folder.Name), nil)
	}

	root, err := os.OpenRoot(folder.Path)
	if err != nil {
		return nil, classifyStatFailure(folder.Name, err)
	}
	return &Handle{folder: folder, root: root}, nil
}

func classifyStatFailure(name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return services.Wrap(services.ErrNotFound, "bookmarks", "resolve access",
			fmt.Sprintf("folder %q is missing", name), err)
	case errors.Is(err, fs.ErrPermission):
		return services.Wrap(services.ErrSecurity, "bookmarks", "resolve access",
			fmt.Sprintf("folder %q access denied", name), err)
	case errors.Is(err, ErrNotDirectory):
		return services.Wrap(services.ErrSecurity, "bookmarks", "resolve access",
			fmt.Sprintf("folder %q is no longer a directory", name), err)
	default:
		return services.Wrap(services.ErrTransient, "bookmarks", "resolve access",
			fmt.Sprintf("folder %q cannot be opened", name), err)
	}
}
