package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"shelf/internal/logging"
	"shelf/internal/store"
)

const (
	defaultBufferSize  = 256
	persistTimeout     = 5 * time.Second
	EventScanStarted   = "scan_started"
	EventScanFinished  = "scan_finished"
	EventSuggestion    = "suggestion_applied"
	EventTransferDone  = "transfer_performed"
	EventTransferFail  = "transfer_failed"
	EventTransferUndo  = "transfer_undone"
	EventPolicyResolve = "policy_resolved"
	EventLifecycle     = "lifecycle_changed"
)

// Recorder buffers audit events and persists them in the background.
type Recorder struct {
	store   *store.Store
	logger  *slog.Logger
	events  chan *store.AuditEvent
	dropped atomic.Int64

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}
}

// NewRecorder builds a recorder with the default buffer size.
func NewRecorder(st *store.Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  st,
		logger: logging.NewComponentLogger(logger, "audit"),
		events: make(chan *store.AuditEvent, defaultBufferSize),
	}
}

// Start launches the drain goroutine. Starting a running recorder is a no-op.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.quit = make(chan struct{})
	r.done = make(chan struct{})
	go r.drain(r.quit, r.done)
}

// Stop flushes buffered events and waits for the drain goroutine to exit.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	quit, done := r.quit, r.done
	r.quit, r.done = nil, nil
	r.mu.Unlock()

	close(quit)
	<-done
}

// Record enqueues one event. It never blocks: when the buffer is full the
// oldest pending entry is discarded to make room.
func (r *Recorder) Record(eventType, subject, detail string) {
	if r == nil || eventType == "" {
		return
	}
	event := &store.AuditEvent{
		EventType:  eventType,
		Subject:    subject,
		Detail:     detail,
		RecordedAt: time.Now().UTC(),
	}

	select {
	case r.events <- event:
		return
	default:
	}

	select {
	case <-r.events:
		r.dropped.Add(1)
	default:
	}
	select {
	case r.events <- event:
	default:
		r.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded due to a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) drain(quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event := <-r.events:
			r.persist(event)
		case <-quit:
			for {
				select {
				case event := <-r.events:
					r.persist(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) persist(event *store.AuditEvent) {
	r.logger.Debug("activity",
		logging.String(logging.FieldEventType, event.EventType),
		logging.String("subject", event.Subject),
		logging.String("detail", event.Detail),
	)

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.store.AppendAuditEvent(ctx, event); err != nil {
		r.logger.Warn("cannot persist audit event",
			logging.String(logging.FieldEventType, event.EventType),
			logging.Error(err),
		)
	}
}
