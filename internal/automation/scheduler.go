package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"shelf/internal/audit"
	"shelf/internal/config"
	"shelf/internal/logging"
	"shelf/internal/notifications"
	"shelf/internal/policy"
	"shelf/internal/scanner"
	"shelf/internal/store"
	"shelf/internal/transfer"
)

// Scanner runs one scan pass. *scanner.Pipeline satisfies it.
type Scanner interface {
	Run(ctx context.Context, opts scanner.RunOptions) (*scanner.Result, error)
}

// Organizer applies ready suggestions. *transfer.Service satisfies it.
type Organizer interface {
	ApplyBatch(ctx context.Context, records []*store.FileRecord) []transfer.ApplyResult
}

type commandKind int

const (
	cmdTrigger commandKind = iota
	cmdLifecycle
	cmdPause
	cmdResume
)

type command struct {
	kind   commandKind
	reason string
	state  LifecycleState
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running           bool
	Paused            bool
	Lifecycle         LifecycleState
	Mode              policy.Mode
	Failures          int
	LastScanAt        time.Time
	NextScanAt        time.Time
	EffectiveInterval time.Duration
}

// Scheduler coordinates scans and auto-organization for the daemon's
// lifetime. Construct with NewScheduler, then Start; inputs arrive as
// messages and are handled by the run goroutine in order.
type Scheduler struct {
	cfg       *config.Config
	store     *store.Store
	scanner   Scanner
	organizer Organizer
	notifier  notifications.Service
	recorder  *audit.Recorder
	logger    *slog.Logger
	pol       policy.Policy

	baseInterval time.Duration
	debounce     time.Duration

	commands chan command

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	view    Status
}

// Option configures optional Scheduler behavior.
type Option func(*Scheduler)

// WithBaseInterval overrides the policy scan interval (used in tests).
func WithBaseInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		if interval > 0 {
			s.baseInterval = interval
		}
	}
}

// WithDebounceWindow overrides the configured debounce window (used in tests).
func WithDebounceWindow(window time.Duration) Option {
	return func(s *Scheduler) {
		if window >= 0 {
			s.debounce = window
		}
	}
}

// NewScheduler resolves automation policy from the config and wires the
// loop. A nil notifier falls back to the config-selected service; the audit
// recorder may be nil.
func NewScheduler(cfg *config.Config, st *store.Store, scan Scanner, organize Organizer, notifier notifications.Service, recorder *audit.Recorder, logger *slog.Logger, opts ...Option) *Scheduler {
	pol := policy.ResolveFromConfig(cfg)
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	s := &Scheduler{
		cfg:          cfg,
		store:        st,
		scanner:      scan,
		organizer:    organize,
		notifier:     notifier,
		recorder:     recorder,
		logger:       logging.NewComponentLogger(logger, "scheduler"),
		pol:          pol,
		baseInterval: time.Duration(pol.ScanIntervalMinutes) * time.Minute,
		debounce:     time.Duration(cfg.Automation.DebounceSeconds) * time.Second,
		commands:     make(chan command, 32),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.view = Status{Lifecycle: StateActiveWithWindow, Mode: pol.Mode}
	return s
}

// Policy returns the resolved policy the scheduler runs under.
func (s *Scheduler) Policy() policy.Policy {
	return s.pol
}

// Start launches the run loop. The scheduler runs until Stop or context
// cancellation; it never terminates itself.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.view.Running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(runCtx)
	return nil
}

// Stop terminates the run loop and waits for it to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.view.Running = false
	s.view.NextScanAt = time.Time{}
	s.mu.Unlock()
}

// TriggerScan requests a scan outside the schedule. Requests are coalesced:
// inside the debounce window, or with one already queued behind a running
// scan, the extra request is dropped rather than queued.
func (s *Scheduler) TriggerScan(reason string) {
	s.send(command{kind: cmdTrigger, reason: reason})
}

// OnLifecycleChange feeds a desktop session transition into the loop.
func (s *Scheduler) OnLifecycleChange(state LifecycleState) {
	s.send(command{kind: cmdLifecycle, state: state})
}

// Pause suspends scheduled and triggered scans until Resume. The pause
// survives a daemon restart.
func (s *Scheduler) Pause() {
	s.send(command{kind: cmdPause})
}

// Resume lifts a pause.
func (s *Scheduler) Resume() {
	s.send(command{kind: cmdResume})
}

// Status returns the current scheduler view.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Scheduler) send(cmd command) {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		return
	}
	select {
	case s.commands <- cmd:
	default:
		s.logger.Warn("scheduler command dropped",
			logging.Int("kind", int(cmd.kind)),
			logging.String("reason", cmd.reason),
		)
	}
}

// loopState is owned exclusively by the run goroutine.
type loopState struct {
	lifecycle LifecycleState
	paused    bool
	failures  int
	lastScan  time.Time
	nextAt    time.Time
	timerSet  bool
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	st := &loopState{lifecycle: StateActiveWithWindow}
	s.restore(ctx, st)
	s.snapshotPolicy(ctx)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	s.rearm(st, timer)

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			st.timerSet = false
			if s.scansAllowed(st) && st.lifecycle.SchedulingAllowed() && s.pastDebounce(st) {
				s.runScan(ctx, st, "scheduled")
			}
			s.rearm(st, timer)
		case cmd := <-s.commands:
			s.handle(ctx, st, cmd, timer)
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, st *loopState, cmd command, timer *time.Timer) {
	switch cmd.kind {
	case cmdTrigger:
		if !s.scansAllowed(st) {
			s.logger.Info("scan trigger ignored",
				logging.String("trigger", cmd.reason),
				logging.Bool("paused", st.paused),
				logging.String("mode", string(s.pol.Mode)),
			)
			return
		}
		if !s.pastDebounce(st) {
			s.logger.Debug("scan trigger coalesced", logging.String("trigger", cmd.reason))
			return
		}
		s.runScan(ctx, st, cmd.reason)
		s.rearm(st, timer)

	case cmdLifecycle:
		if cmd.state == st.lifecycle {
			return
		}
		st.lifecycle = cmd.state
		s.logger.Info("lifecycle changed", logging.String("state", string(cmd.state)))
		s.record(audit.EventLifecycle, string(cmd.state), "")
		s.saveState(ctx, store.StateLifecycle, string(cmd.state))
		s.rearm(st, timer)

	case cmdPause:
		if st.paused {
			return
		}
		st.paused = true
		s.logger.Info("scheduler paused")
		s.saveState(ctx, store.StatePaused, "true")
		s.rearm(st, timer)

	case cmdResume:
		if !st.paused {
			return
		}
		st.paused = false
		s.logger.Info("scheduler resumed")
		s.saveState(ctx, store.StatePaused, "false")
		s.rearm(st, timer)
	}
}

// rearm recomputes the scheduled timer after any transition. A suspended
// schedule (pause, mode off, lifecycle multiplier zero) leaves the timer
// stopped rather than merely long.
func (s *Scheduler) rearm(st *loopState, timer *time.Timer) {
	if st.timerSet {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		st.timerSet = false
	}

	interval, ok := s.effectiveInterval(st)
	if !ok {
		st.nextAt = time.Time{}
		s.publish(st)
		return
	}
	timer.Reset(interval)
	st.timerSet = true
	st.nextAt = time.Now().Add(interval)
	s.publish(st)
}

func (s *Scheduler) scansAllowed(st *loopState) bool {
	return !st.paused && s.pol.CanScan()
}

func (s *Scheduler) pastDebounce(st *loopState) bool {
	if st.lastScan.IsZero() || s.debounce <= 0 {
		return true
	}
	return time.Since(st.lastScan) >= s.debounce
}

func (s *Scheduler) effectiveInterval(st *loopState) (time.Duration, bool) {
	if !s.scansAllowed(st) {
		return 0, false
	}
	mult := st.lifecycle.Multiplier()
	if mult == 0 {
		return 0, false
	}
	return s.baseInterval * time.Duration(mult) * time.Duration(s.backoffFactor(st.failures)), true
}

// backoffFactor doubles the cadence per failure once the count reaches the
// policy limit, up to the configured ceiling.
func (s *Scheduler) backoffFactor(failures int) int {
	if failures < s.pol.MaxConsecutiveFailures {
		return 1
	}
	ceiling := s.maxBackoff()
	factor := 1
	for i := s.pol.MaxConsecutiveFailures; i <= failures; i++ {
		factor *= 2
		if factor >= ceiling {
			return ceiling
		}
	}
	return factor
}

func (s *Scheduler) maxBackoff() int {
	if ceiling := s.cfg.Automation.MaxBackoffMultiplier; ceiling >= 1 {
		return ceiling
	}
	return 1
}

func (s *Scheduler) runScan(ctx context.Context, st *loopState, trigger string) {
	st.lastScan = time.Now()
	s.record(audit.EventScanStarted, trigger, "")

	result, err := s.scanner.Run(ctx, scanner.RunOptions{
		Trigger:             trigger,
		ConfidenceThreshold: s.pol.ConfidenceThreshold,
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.scanFailed(ctx, st, err)
		return
	}
	s.scanSucceeded(ctx, st, result)
}

func (s *Scheduler) scanFailed(ctx context.Context, st *loopState, err error) {
	previous := s.backoffFactor(st.failures)
	st.failures++
	s.saveStateInt(ctx, store.StateConsecutiveFailures, st.failures)
	s.record(audit.EventScanFinished, "", "error="+err.Error())

	logging.ErrorWithContext(s.logger, "scan failed", "scan_failed",
		logging.Error(err),
		logging.Int("consecutive_failures", st.failures),
		logging.String(logging.FieldErrorHint, "check folder access and tokens"),
	)

	ceiling := s.maxBackoff()
	if ceiling > 1 && previous < ceiling && s.backoffFactor(st.failures) >= ceiling && s.pol.NotificationsEnabled {
		if interval, ok := s.effectiveInterval(st); ok {
			if nerr := s.notifier.NotifyAutomationPaused(ctx, st.failures, interval); nerr != nil {
				s.logger.Warn("cannot send pause notification", logging.Error(nerr))
			}
		}
	}
}

func (s *Scheduler) scanSucceeded(ctx context.Context, st *loopState, result *scanner.Result) {
	if st.failures != 0 {
		st.failures = 0
		s.saveStateInt(ctx, store.StateConsecutiveFailures, 0)
	}
	s.saveState(ctx, store.StateLastScanAt, st.lastScan.UTC().Format(time.RFC3339))
	s.record(audit.EventScanFinished, result.ScanID,
		fmt.Sprintf("trigger=%s seen=%d new=%d folders=%d", result.Trigger, result.FilesSeen, result.FilesNew, result.FoldersScanned))

	ready, err := s.store.ReadyCount(ctx)
	if err != nil {
		s.logger.Warn("cannot count ready records", logging.Error(err))
		return
	}

	if s.pol.NotificationsEnabled && result.FilesNew > 0 {
		if nerr := s.notifier.NotifyScanCompleted(ctx, result.FilesNew, ready); nerr != nil {
			s.logger.Warn("cannot send scan notification", logging.Error(nerr))
		}
	}

	if !s.pol.CanAutoOrganize() || ready == 0 {
		return
	}
	if ready > s.pol.BacklogThreshold {
		s.logger.Info("auto-organize withheld",
			logging.Int("ready", ready),
			logging.Int("threshold", s.pol.BacklogThreshold),
			logging.String(logging.FieldImpact, "suggestions await manual review"),
		)
		if s.pol.NotificationsEnabled {
			if nerr := s.notifier.NotifyBacklogReview(ctx, ready, s.pol.BacklogThreshold); nerr != nil {
				s.logger.Warn("cannot send backlog notification", logging.Error(nerr))
			}
		}
		return
	}
	s.organize(ctx)
}

func (s *Scheduler) organize(ctx context.Context) {
	records, err := s.store.ListRecords(ctx, store.StatusReady)
	if err != nil {
		s.logger.Warn("cannot list ready records", logging.Error(err))
		return
	}
	if len(records) == 0 {
		return
	}

	results := s.organizer.ApplyBatch(ctx, records)
	organized, failed := 0, 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			s.record(audit.EventTransferFail, res.Name, res.Err.Error())
			s.logger.Warn("auto-organize transfer failed",
				logging.Int64(logging.FieldRecordID, res.RecordID),
				logging.String("name", res.Name),
				logging.Error(res.Err),
			)
			if s.pol.NotificationsEnabled {
				if nerr := s.notifier.NotifyTransferFailed(ctx, res.Name, res.Err); nerr != nil {
					s.logger.Warn("cannot send failure notification", logging.Error(nerr))
				}
			}
			continue
		}
		organized++
		s.record(audit.EventSuggestion, res.Name, "destination="+res.Destination)
	}

	s.logger.Info("auto-organize complete",
		logging.Int("organized", organized),
		logging.Int("failed", failed),
	)
	if s.pol.NotificationsEnabled && organized+failed > 0 {
		if nerr := s.notifier.NotifyOrganizationCompleted(ctx, organized, failed); nerr != nil {
			s.logger.Warn("cannot send organize notification", logging.Error(nerr))
		}
	}
}

// restore loads the durable pieces of scheduler state. Lifecycle always
// restarts as activeWithWindow; the session hooks re-report transitions.
func (s *Scheduler) restore(ctx context.Context, st *loopState) {
	if failures, err := s.store.GetStateInt(ctx, store.StateConsecutiveFailures, 0); err == nil && failures > 0 {
		st.failures = failures
	}
	if value, ok, err := s.store.GetState(ctx, store.StatePaused); err == nil && ok {
		st.paused = value == "true"
	}
	if value, ok, err := s.store.GetState(ctx, store.StateLastScanAt); err == nil && ok {
		if t, perr := time.Parse(time.RFC3339, value); perr == nil {
			st.lastScan = t
		}
	}
}

func (s *Scheduler) snapshotPolicy(ctx context.Context) {
	if err := s.store.SavePolicySnapshot(ctx, policy.Snapshot(s.pol)); err != nil {
		s.logger.Warn("cannot persist policy snapshot", logging.Error(err))
	}
	s.record(audit.EventPolicyResolve, string(s.pol.Mode),
		fmt.Sprintf("interval=%dm backlog=%d", s.pol.ScanIntervalMinutes, s.pol.BacklogThreshold))
}

func (s *Scheduler) publish(st *loopState) {
	view := Status{
		Running:    true,
		Paused:     st.paused,
		Lifecycle:  st.lifecycle,
		Mode:       s.pol.Mode,
		Failures:   st.failures,
		LastScanAt: st.lastScan,
		NextScanAt: st.nextAt,
	}
	if interval, ok := s.effectiveInterval(st); ok {
		view.EffectiveInterval = interval
	}
	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
}

func (s *Scheduler) record(eventType, subject, detail string) {
	if s.recorder != nil {
		s.recorder.Record(eventType, subject, detail)
	}
}

func (s *Scheduler) saveState(ctx context.Context, key, value string) {
	if err := s.store.SetState(ctx, key, value); err != nil && ctx.Err() == nil {
		s.logger.Warn("cannot persist scheduler state",
			logging.String("key", key),
			logging.Error(err),
		)
	}
}

func (s *Scheduler) saveStateInt(ctx context.Context, key string, value int) {
	s.saveState(ctx, key, strconv.Itoa(value))
}
