package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"shelf/internal/config"
	"shelf/internal/logging"
	"shelf/internal/predict"
	"shelf/internal/store"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatabase opens the database and runs its integrity diagnostics.
func CheckDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Database"

	st, err := store.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open failed: %v", err)}
	}
	defer st.Close()

	health, err := st.CheckHealth(ctx)
	if err != nil {
		detail := health.Error
		if detail == "" {
			detail = err.Error()
		}
		return Result{Name: name, Detail: detail}
	}
	if !health.IntegrityCheck {
		return Result{Name: name, Detail: fmt.Sprintf("%s (integrity check failed)", health.DBPath)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d records, schema %s)", health.DBPath, health.TotalRecords, health.SchemaVersion)}
}

// CheckDaemonSocket probes the control socket. A missing socket is healthy
// (the daemon is simply not running); a socket that refuses connections is
// stale and blocks CLI commands.
func CheckDaemonSocket(path string) Result {
	const name = "Daemon socket"

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: "daemon not running"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}

	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (stale socket: %v)", path, err)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: "daemon reachable"}
}

// CheckPredictionEndpoint verifies the ML prediction service is reachable.
// It uses a short timeout and a single attempt.
func CheckPredictionEndpoint(ctx context.Context, cfg *config.Config) Result {
	const name = "Prediction endpoint"

	if strings.TrimSpace(cfg.Predictions.Endpoint) == "" {
		return Result{Name: name, Detail: "endpoint missing"}
	}

	predictor, err := predict.NewHTTPPredictor(cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := predictor.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizePredictError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "endpoint reachable"}
}

// CheckNotifications verifies that a ntfy topic is configured.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Detail: "ntfy topic missing"}
	}
	return Result{Name: name, Passed: true, Detail: "topic configured"}
}

// summarizePredictError produces a human-readable summary for prediction
// health check failures.
func summarizePredictError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (prediction service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (prediction service unreachable)"
	}
	return err.Error()
}
