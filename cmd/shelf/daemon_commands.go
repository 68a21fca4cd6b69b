package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shelf/internal/config"
	"shelf/internal/daemonctl"
	"shelf/internal/ipc"
	"shelf/internal/store"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the shelf daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the shelf daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the shelf daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			switch result.Start.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Start.Message) != "" {
					fmt.Fprintln(stdout, result.Start.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and record status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp := buildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range buildSystemLines(statusResp, cfg, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Records", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildRecordStatusRows(statusResp.RecordStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No tracked files")
				return nil
			}
			table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprint(stdout, table)
			fmt.Fprintln(stdout)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

// buildStatusSnapshot collects daemon status, falling back to direct store
// access for record stats when the daemon is offline.
func buildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) *ipc.StatusResponse {
	statusResp := &ipc.StatusResponse{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			statusResp = resp
		}
	}

	if !statusResp.Running && cfg != nil {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		st, openErr := store.Open(cfg)
		if openErr == nil {
			stats, statsErr := st.RecordStats(queryCtx)
			_ = st.Close()
			if statsErr == nil {
				statusResp.RecordStats = make(map[string]int, len(stats))
				for status, count := range stats {
					statusResp.RecordStats[string(status)] = count
				}
			}
		}
	}

	return statusResp
}

func buildSystemLines(status *ipc.StatusResponse, cfg *config.Config, colorize bool) []string {
	lines := make([]string, 0, 8)
	if !status.Running {
		lines = append(lines, renderStatusLine("Shelf", statusWarn, "Not running (run `shelf start`)", colorize))
		return lines
	}

	lines = append(lines, renderStatusLine("Shelf", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))

	sched := status.Scheduler
	switch {
	case sched.Paused:
		lines = append(lines, renderStatusLine("Automation", statusWarn, "Paused", colorize))
	case sched.Mode == "off":
		lines = append(lines, renderStatusLine("Automation", statusInfo, "Off", colorize))
	default:
		lines = append(lines, renderStatusLine("Automation", statusOK, sched.Mode, colorize))
	}

	if sched.Lifecycle != "" {
		lines = append(lines, renderStatusLine("Lifecycle", statusInfo, sched.Lifecycle, colorize))
	}
	if sched.NextScanAt != "" {
		lines = append(lines, renderStatusLine("Next scan", statusInfo, sched.NextScanAt, colorize))
	} else {
		lines = append(lines, renderStatusLine("Next scan", statusInfo, "Not scheduled", colorize))
	}
	if sched.Failures > 0 {
		lines = append(lines, renderStatusLine("Scan failures", statusWarn, fmt.Sprintf("%d consecutive", sched.Failures), colorize))
	}

	if status.VolumeMonitoring {
		lines = append(lines, renderStatusLine("Volume Detection", statusOK, "Netlink monitoring active", colorize))
	} else {
		lines = append(lines, renderStatusLine("Volume Detection", statusInfo, "Inactive", colorize))
	}

	if cfg != nil && strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, renderStatusLine("Notifications", statusOK, "Configured", colorize))
	} else {
		lines = append(lines, renderStatusLine("Notifications", statusWarn, "Not configured", colorize))
	}

	return lines
}

func buildRecordStatusRows(stats map[string]int) [][]string {
	order := []string{"pending", "ready", "completed", "skipped", "missing"}
	rows := make([][]string, 0, len(stats))
	seen := make(map[string]bool, len(stats))
	for _, status := range order {
		if count, ok := stats[status]; ok && count > 0 {
			rows = append(rows, []string{status, fmt.Sprintf("%d", count)})
			seen[status] = true
		}
	}
	extra := make([]string, 0)
	for status, count := range stats {
		if !seen[status] && count > 0 {
			extra = append(extra, status)
		}
	}
	sort.Strings(extra)
	for _, status := range extra {
		rows = append(rows, []string{status, fmt.Sprintf("%d", stats[status])})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
