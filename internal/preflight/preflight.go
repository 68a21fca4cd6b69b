package preflight

import (
	"context"

	"shelf/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("Trash directory", cfg.Paths.TrashDir))

	results = append(results, CheckDirectoryAccess("Downloads folder", cfg.Folders.DownloadsDir))
	results = append(results, CheckDirectoryAccess("Desktop folder", cfg.Folders.DesktopDir))
	results = append(results, CheckDirectoryAccess("Documents folder", cfg.Folders.DocumentsDir))
	for _, watch := range cfg.Folders.Watch {
		results = append(results, CheckDirectoryAccess("Watched folder", watch))
	}
	if cfg.Folders.OrganizeRoot != "" {
		results = append(results, CheckDirectoryAccess("Organize root", cfg.Folders.OrganizeRoot))
	}

	results = append(results, CheckDatabase(ctx, cfg))
	results = append(results, CheckDaemonSocket(cfg.SocketPath()))

	if cfg.Features.Predictions {
		results = append(results, CheckPredictionEndpoint(ctx, cfg))
	}
	if cfg.Features.Notifications {
		results = append(results, CheckNotifications(cfg))
	}

	return results
}
