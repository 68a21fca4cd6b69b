package audit_test

import (
	"context"
	"fmt"
	"testing"

	"shelf/internal/audit"
	"shelf/internal/logging"
	"shelf/internal/testsupport"
)

func TestRecorderPersistsEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	recorder := audit.NewRecorder(st, logging.NewNop())
	recorder.Start()

	recorder.Record(audit.EventScanStarted, "scan-1", "trigger=manual")
	recorder.Record(audit.EventScanFinished, "scan-1", "files=12")
	recorder.Record(audit.EventSuggestion, "invoice.pdf", "source=rule")
	recorder.Stop()

	events, err := st.RecentAuditEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentAuditEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}

	types := make(map[string]string)
	for _, event := range events {
		types[event.EventType] = event.Subject
	}
	if types[audit.EventScanStarted] != "scan-1" {
		t.Fatalf("scan start event missing: %v", types)
	}
	if types[audit.EventSuggestion] != "invoice.pdf" {
		t.Fatalf("suggestion event missing: %v", types)
	}
	if recorder.Dropped() != 0 {
		t.Fatalf("dropped = %d, want 0", recorder.Dropped())
	}
}

func TestRecorderStopFlushesBuffer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	recorder := audit.NewRecorder(st, logging.NewNop())

	// Events recorded before Start sit in the buffer until the drain runs.
	recorder.Record(audit.EventPolicyResolve, "scan_only", "")
	recorder.Record(audit.EventLifecycle, "backgrounded", "")

	recorder.Start()
	recorder.Stop()

	events, err := st.RecentAuditEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentAuditEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
}

func TestRecordNeverBlocksOnFullBuffer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	recorder := audit.NewRecorder(st, logging.NewNop())

	// No drain goroutine: fill the buffer past capacity and then some.
	const overflow = 10
	for i := 0; i < 256+overflow; i++ {
		recorder.Record(audit.EventTransferDone, fmt.Sprintf("file-%d", i), "")
	}
	if got := recorder.Dropped(); got != overflow {
		t.Fatalf("dropped = %d, want %d", got, overflow)
	}

	recorder.Start()
	recorder.Stop()

	events, err := st.RecentAuditEvents(context.Background(), 300)
	if err != nil {
		t.Fatalf("RecentAuditEvents: %v", err)
	}
	if len(events) != 256 {
		t.Fatalf("persisted events = %d, want 256", len(events))
	}
}

func TestRecorderStartStopIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	recorder := audit.NewRecorder(st, logging.NewNop())
	recorder.Stop()
	recorder.Start()
	recorder.Start()
	recorder.Record(audit.EventTransferUndo, "a.txt", "")
	recorder.Stop()
	recorder.Stop()

	recorder.Start()
	recorder.Record(audit.EventTransferUndo, "b.txt", "")
	recorder.Stop()

	events, err := st.RecentAuditEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentAuditEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
}
