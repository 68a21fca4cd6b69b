package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"shelf/internal/audit"
	"shelf/internal/automation"
	"shelf/internal/bookmarks"
	"shelf/internal/config"
	"shelf/internal/logging"
	"shelf/internal/notifications"
	"shelf/internal/rules"
	"shelf/internal/store"
	"shelf/internal/transfer"
)

// Daemon owns the background services and enforces single-instance execution
// through a lock file in the data directory.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	provider  *bookmarks.Provider
	scheduler *automation.Scheduler
	transfers *transfer.Service
	recorder  *audit.Recorder
	monitor   *volumeMonitor
	logPath   string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	Scheduler        automation.Status
	RecordStats      map[store.RecordStatus]int
	DBPath           string
	LockFilePath     string
	SocketPath       string
	PID              int
	VolumeMonitoring bool
	AuditDropped     int64
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, provider *bookmarks.Provider, sched *automation.Scheduler, transfers *transfer.Service, recorder *audit.Recorder, logPath string) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || provider == nil || sched == nil || transfers == nil {
		return nil, errors.New("daemon requires config, store, logger, provider, scheduler, and transfer service")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		provider:  provider,
		scheduler: sched,
		transfers: transfers,
		recorder:  recorder,
		logPath:   logPath,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.monitor = newVolumeMonitor(cfg, logger, func(device string) {
		sched.TriggerScan("volume")
	})
	return d, nil
}

// Start acquires the daemon lock, registers the default watched folders, and
// launches the scheduler and monitors.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shelf daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.provider.EnsureDefaults(runCtx, d.cfg); err != nil {
		d.logger.Warn("cannot register default folders",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check folder paths in the [folders] config section"),
		)
	}

	if d.recorder != nil {
		d.recorder.Start()
	}
	if err := d.scheduler.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}
	_ = d.monitor.Start(runCtx)

	d.running.Store(true)
	d.logger.Info("shelf daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.monitor.Stop()
	d.scheduler.Stop()
	if d.recorder != nil {
		d.recorder.Stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("shelf daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// TriggerScan requests a scan outside the schedule.
func (d *Daemon) TriggerScan(reason string) error {
	if !d.running.Load() {
		return errors.New("daemon is not running")
	}
	d.scheduler.TriggerScan(reason)
	return nil
}

// Pause suspends scheduled and triggered scans until Resume.
func (d *Daemon) Pause() error {
	if !d.running.Load() {
		return errors.New("daemon is not running")
	}
	d.scheduler.Pause()
	return nil
}

// Resume lifts a pause.
func (d *Daemon) Resume() error {
	if !d.running.Load() {
		return errors.New("daemon is not running")
	}
	d.scheduler.Resume()
	return nil
}

// Lifecycle feeds a desktop session transition into the scheduler.
func (d *Daemon) Lifecycle(state string) error {
	if !d.running.Load() {
		return errors.New("daemon is not running")
	}
	parsed, ok := automation.ParseLifecycleState(state)
	if !ok {
		return fmt.Errorf("unknown lifecycle state %q", state)
	}
	d.scheduler.OnLifecycleChange(parsed)
	return nil
}

// ListRecords returns file records filtered by optional statuses.
func (d *Daemon) ListRecords(ctx context.Context, statuses []store.RecordStatus) ([]*store.FileRecord, error) {
	return d.store.ListRecords(ctx, statuses...)
}

// GetRecord returns a single record by ID.
func (d *Daemon) GetRecord(ctx context.Context, id int64) (*store.FileRecord, error) {
	return d.store.GetRecord(ctx, id)
}

// SkipRecord marks a record skipped so it is never re-suggested or organized.
func (d *Daemon) SkipRecord(ctx context.Context, id int64) error {
	record, err := d.store.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("record %d not found", id)
	}
	return d.store.MarkRecordSkipped(ctx, id)
}

// ListRules returns every stored rule in evaluation order.
func (d *Daemon) ListRules(ctx context.Context) ([]rules.Rule, error) {
	return d.store.ListRules(ctx)
}

// ListFolders returns every registered watched folder.
func (d *Daemon) ListFolders(ctx context.Context) ([]*store.Folder, error) {
	return d.store.Folders(ctx)
}

// SetFolderEnabled flips a folder by name. The change is picked up by the
// next scan's folder snapshot; in-flight scans keep their own snapshot.
func (d *Daemon) SetFolderEnabled(ctx context.Context, name string, enabled bool) (*store.Folder, error) {
	folder, err := d.findFolder(ctx, name)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, fmt.Errorf("folder %q not registered", name)
	}
	if err := d.store.SetFolderEnabled(ctx, folder.ID, enabled); err != nil {
		return nil, err
	}
	folder.Enabled = enabled
	return folder, nil
}

// findFolder matches by exact name first, then case-insensitively.
func (d *Daemon) findFolder(ctx context.Context, name string) (*store.Folder, error) {
	name = strings.TrimSpace(name)
	folder, err := d.store.GetFolderByName(ctx, name)
	if err != nil || folder != nil {
		return folder, err
	}
	folders, err := d.store.Folders(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range folders {
		if strings.EqualFold(f.Name, name) {
			return f, nil
		}
	}
	return nil, nil
}

// Apply organizes ready records through the transfer service. An empty id
// list applies every ready record.
func (d *Daemon) Apply(ctx context.Context, ids []int64) ([]transfer.ApplyResult, error) {
	var records []*store.FileRecord
	if len(ids) == 0 {
		ready, err := d.store.ListRecords(ctx, store.StatusReady)
		if err != nil {
			return nil, err
		}
		records = ready
	} else {
		for _, id := range ids {
			record, err := d.store.GetRecord(ctx, id)
			if err != nil {
				return nil, err
			}
			if record == nil {
				return nil, fmt.Errorf("record %d not found", id)
			}
			records = append(records, record)
		}
	}
	return d.transfers.ApplyBatch(ctx, records), nil
}

// UndoLast reverses the most recent completed transfer.
func (d *Daemon) UndoLast(ctx context.Context) (*store.TransferEntry, error) {
	return d.transfers.UndoLast(ctx)
}

// RedoLast re-applies the most recently undone transfer.
func (d *Daemon) RedoLast(ctx context.Context) (*store.TransferEntry, error) {
	return d.transfers.RedoLast(ctx)
}

// History returns recent transfer ledger entries, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]*store.TransferEntry, error) {
	return d.store.RecentTransfers(ctx, limit)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (store.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:          d.running.Load(),
		Scheduler:        d.scheduler.Status(),
		DBPath:           d.cfg.DatabasePath(),
		LockFilePath:     d.lockPath,
		SocketPath:       d.cfg.SocketPath(),
		PID:              os.Getpid(),
		VolumeMonitoring: d.monitor.Running(),
	}
	if d.recorder != nil {
		status.AuditDropped = d.recorder.Dropped()
	}
	if stats, err := d.store.RecordStats(ctx); err == nil {
		status.RecordStats = stats
	} else {
		d.logger.Warn("cannot load record stats", logging.Error(err))
	}
	return status
}

// TrashDir returns the daemon-owned trash directory used by delete rules.
func (d *Daemon) TrashDir() string {
	return filepath.Clean(d.cfg.Paths.TrashDir)
}
