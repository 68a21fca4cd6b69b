package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"shelf/internal/config"
	"shelf/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyScanCompleted(context.Background(), 3, 1); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "scan completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyScanCompleted(context.Background(), 4, 2)
			},
			expectTitle:   "Shelf - Scan Complete",
			expectMessage: "Scan complete: 4 new files, 2 suggestions ready",
			expectTags:    "shelf,scan,completed",
		},
		{
			name: "organization completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyOrganizationCompleted(context.Background(), 3, 0)
			},
			expectTitle:   "Shelf - Organized",
			expectMessage: "✅ Organized 3 files",
			expectTags:    "shelf,organize,completed",
		},
		{
			name: "organization with failures",
			send: func(svc notifications.Service) error {
				return svc.NotifyOrganizationCompleted(context.Background(), 3, 1)
			},
			expectTitle:    "Shelf - Organized (with errors)",
			expectMessage:  "Organized 3 files, 1 failed",
			expectTags:     "shelf,organize,completed",
			expectPriority: "high",
		},
		{
			name: "backlog review",
			send: func(svc notifications.Service) error {
				return svc.NotifyBacklogReview(context.Background(), 30, 25)
			},
			expectTitle:    "Shelf - Review Needed",
			expectMessage:  "📋 30 suggestions waiting (threshold 25)\nReview them before auto-organize resumes",
			expectTags:     "shelf,backlog,review",
			expectPriority: "high",
		},
		{
			name: "transfer failed",
			send: func(svc notifications.Service) error {
				return svc.NotifyTransferFailed(context.Background(), "report.pdf", errors.New("destination exists"))
			},
			expectTitle:    "Shelf - Transfer Failed",
			expectMessage:  "❌ Could not organize report.pdf: destination exists",
			expectTags:     "shelf,transfer,failed",
			expectPriority: "high",
		},
		{
			name: "automation paused",
			send: func(svc notifications.Service) error {
				return svc.NotifyAutomationPaused(context.Background(), 3, 30*time.Minute)
			},
			expectTitle:    "Shelf - Automation Paused",
			expectMessage:  "⏸️ 3 scans failed in a row; next attempt in 30m0s",
			expectTags:     "shelf,automation,paused",
			expectPriority: "high",
		},
		{
			name: "test notification",
			send: func(svc notifications.Service) error {
				return svc.TestNotification(context.Background())
			},
			expectTitle:    "Shelf - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "shelf,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.ScanComplete = false
	cfg.Notifications.AutoOrganize = false
	cfg.Notifications.Backlog = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyScanCompleted(ctx, 1, 1); err != nil {
		t.Fatalf("suppressed scan notification errored: %v", err)
	}
	if err := svc.NotifyOrganizationCompleted(ctx, 1, 0); err != nil {
		t.Fatalf("suppressed organize notification errored: %v", err)
	}
	if err := svc.NotifyBacklogReview(ctx, 40, 25); err != nil {
		t.Fatalf("suppressed backlog notification errored: %v", err)
	}
	if err := svc.NotifyTransferFailed(ctx, "a.txt", errors.New("nope")); err != nil {
		t.Fatalf("suppressed failure notification errored: %v", err)
	}
	if err := svc.NotifyAutomationPaused(ctx, 3, time.Minute); err != nil {
		t.Fatalf("suppressed pause notification errored: %v", err)
	}
	if got := requests.Load(); got != 0 {
		t.Fatalf("suppressed events reached the server %d times", got)
	}

	// An explicit test request ignores the toggles.
	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("test notification requests = %d, want 1", got)
	}
}

func TestNtfyServiceDedupsRepeatedEvents(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.DedupWindowSeconds = 600

	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyScanCompleted(ctx, 2, 1); err != nil {
		t.Fatalf("first scan notification: %v", err)
	}
	if err := svc.NotifyScanCompleted(ctx, 5, 3); err != nil {
		t.Fatalf("repeated scan notification: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("requests after repeat = %d, want 1", got)
	}

	// Different event keys are not deduplicated against each other.
	if err := svc.NotifyBacklogReview(ctx, 30, 25); err != nil {
		t.Fatalf("backlog notification: %v", err)
	}
	if err := svc.NotifyTransferFailed(ctx, "a.txt", errors.New("nope")); err != nil {
		t.Fatalf("first failure notification: %v", err)
	}
	if err := svc.NotifyTransferFailed(ctx, "b.txt", errors.New("nope")); err != nil {
		t.Fatalf("second failure notification: %v", err)
	}
	if got := requests.Load(); got != 4 {
		t.Fatalf("requests = %d, want 4", got)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatalf("expected error from failing ntfy endpoint")
	}
}
