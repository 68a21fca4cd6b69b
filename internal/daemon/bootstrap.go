package daemon

import (
	"log/slog"

	"shelf/internal/audit"
	"shelf/internal/automation"
	"shelf/internal/bookmarks"
	"shelf/internal/config"
	"shelf/internal/notifications"
	"shelf/internal/patterns"
	"shelf/internal/predict"
	"shelf/internal/rules"
	"shelf/internal/scanner"
	"shelf/internal/store"
	"shelf/internal/transfer"
)

// Bootstrap wires the full service graph on top of an opened store: folder
// provider, rule engine, pattern source, predictor, scan pipeline, transfer
// service, audit recorder, notifier, and scheduler.
func Bootstrap(cfg *config.Config, st *store.Store, logger *slog.Logger, logPath string) (*Daemon, error) {
	provider := bookmarks.NewProvider(st, logger)
	engine := rules.NewEngine(logger)

	var patternSource scanner.PatternSource
	var rememberer *patterns.Source
	if cfg.Features.LearnedPatterns {
		rememberer = patterns.NewSource(st, logger)
		patternSource = rememberer
	}
	predictor := predict.FromConfig(cfg, logger)

	pipeline := scanner.NewPipeline(st, provider, engine, patternSource, predictor, cfg, logger)
	transfers := transfer.NewService(st, provider, rememberer, cfg, logger)
	recorder := audit.NewRecorder(st, logger)
	notifier := notifications.NewService(cfg)
	sched := automation.NewScheduler(cfg, st, pipeline, transfers, notifier, recorder, logger)

	return New(cfg, st, logger, provider, sched, transfers, recorder, logPath)
}
