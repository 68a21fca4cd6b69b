package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"shelf/internal/config"
)

const userAgent = "Shelf-Go/0.1.0"

// Service defines the notification surface exposed to automation components.
type Service interface {
	NotifyScanCompleted(ctx context.Context, newFiles, readyCount int) error
	NotifyOrganizationCompleted(ctx context.Context, organized, failed int) error
	NotifyBacklogReview(ctx context.Context, readyCount, threshold int) error
	NotifyTransferFailed(ctx context.Context, name string, cause error) error
	NotifyAutomationPaused(ctx context.Context, failures int, nextAttempt time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg.Notifications,
		dedup:    newDedupWindow(time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
	dedup    *dedupWindow
}

func (n *ntfyService) NotifyScanCompleted(ctx context.Context, newFiles, readyCount int) error {
	if !n.toggles.ScanComplete {
		return nil
	}
	if !n.dedup.allow("scan_completed") {
		return nil
	}
	data := payload{
		title:   "Shelf - Scan Complete",
		message: fmt.Sprintf("Scan complete: %d new files, %d suggestions ready", newFiles, readyCount),
		tags:    []string{"shelf", "scan", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyOrganizationCompleted(ctx context.Context, organized, failed int) error {
	if !n.toggles.AutoOrganize {
		return nil
	}
	if !n.dedup.allow("organize_completed") {
		return nil
	}

	var data payload
	if failed == 0 {
		data = payload{
			title:   "Shelf - Organized",
			message: fmt.Sprintf("✅ Organized %d files", organized),
			tags:    []string{"shelf", "organize", "completed"},
		}
	} else {
		data = payload{
			title:    "Shelf - Organized (with errors)",
			message:  fmt.Sprintf("Organized %d files, %d failed", organized, failed),
			tags:     []string{"shelf", "organize", "completed"},
			priority: "high",
		}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBacklogReview(ctx context.Context, readyCount, threshold int) error {
	if !n.toggles.Backlog {
		return nil
	}
	if !n.dedup.allow("backlog_review") {
		return nil
	}
	data := payload{
		title: "Shelf - Review Needed",
		message: fmt.Sprintf("📋 %d suggestions waiting (threshold %d)\nReview them before auto-organize resumes",
			readyCount, threshold),
		tags:     []string{"shelf", "backlog", "review"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTransferFailed(ctx context.Context, name string, cause error) error {
	if !n.toggles.Errors {
		return nil
	}
	name = strings.TrimSpace(name)
	if !n.dedup.allow("transfer_failed:" + name) {
		return nil
	}

	reason := "unknown"
	if cause != nil {
		reason = strings.TrimSpace(cause.Error())
	}
	data := payload{
		title:    "Shelf - Transfer Failed",
		message:  fmt.Sprintf("❌ Could not organize %s: %s", name, reason),
		tags:     []string{"shelf", "transfer", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAutomationPaused(ctx context.Context, failures int, nextAttempt time.Duration) error {
	if !n.toggles.Errors {
		return nil
	}
	if !n.dedup.allow("automation_paused") {
		return nil
	}

	nextAttempt = nextAttempt.Round(time.Second)
	if nextAttempt < 0 {
		nextAttempt = 0
	}
	data := payload{
		title:    "Shelf - Automation Paused",
		message:  fmt.Sprintf("⏸️ %d scans failed in a row; next attempt in %s", failures, nextAttempt),
		tags:     []string{"shelf", "automation", "paused"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	// Explicit user request: never suppressed, never deduplicated.
	data := payload{
		title:    "Shelf - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"shelf", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// dedupWindow drops repeats of the same event key inside the window.
type dedupWindow struct {
	window time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func newDedupWindow(window time.Duration) *dedupWindow {
	return &dedupWindow{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

func (d *dedupWindow) allow(key string) bool {
	if d == nil || d.window <= 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return false
	}
	d.seen[key] = now
	return true
}

type noopService struct{}

func (noopService) NotifyScanCompleted(context.Context, int, int) error              { return nil }
func (noopService) NotifyOrganizationCompleted(context.Context, int, int) error      { return nil }
func (noopService) NotifyBacklogReview(context.Context, int, int) error              { return nil }
func (noopService) NotifyTransferFailed(context.Context, string, error) error        { return nil }
func (noopService) NotifyAutomationPaused(context.Context, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
