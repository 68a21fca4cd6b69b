package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shelf/internal/config"
	"shelf/internal/ipc"
	"shelf/internal/policy"
	"shelf/internal/store"
)

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause automated scanning",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Pause(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Automation paused")
				return nil
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume automated scanning",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Resume(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Automation resumed")
				return nil
			})
		},
	}
}

func newLifecycleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lifecycle <state>",
		Short: "Report an application lifecycle transition",
		Long: "Report an application lifecycle transition to the scheduler.\n" +
			"Valid states: active_with_window, active_window_closed, backgrounded, menu_bar_only.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Lifecycle(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Lifecycle set to %s\n", args[0])
				return nil
			})
		},
	}
}

// newPolicyCommand resolves the effective automation policy from the local
// configuration and compares it with the last snapshot the daemon persisted.
func newPolicyCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show the effective automation policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			resolved := policy.ResolveFromConfig(cfg)
			if asJSON {
				return writeJSON(cmd, policy.Snapshot(resolved))
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range renderSectionHeader("Effective Policy", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintf(stdout, "Mode:                 %s\n", resolved.Mode)
			fmt.Fprintf(stdout, "Scan interval:        %d minutes\n", resolved.ScanIntervalMinutes)
			fmt.Fprintf(stdout, "Backlog threshold:    %d\n", resolved.BacklogThreshold)
			fmt.Fprintf(stdout, "Confidence threshold: %.2f\n", resolved.ConfidenceThreshold)
			fmt.Fprintf(stdout, "Failure cap:          %d\n", resolved.MaxConsecutiveFailures)
			fmt.Fprintf(stdout, "Can scan:             %s\n", yesNo(resolved.CanScan()))
			fmt.Fprintf(stdout, "Can auto-organize:    %s\n", yesNo(resolved.CanAutoOrganize()))
			fmt.Fprintf(stdout, "Notifications:        %s\n", yesNo(resolved.NotificationsEnabled))
			fmt.Fprintf(stdout, "Pattern learning:     %s\n", yesNo(resolved.PatternsEnabled))
			fmt.Fprintf(stdout, "Predictions:          %s\n", yesNo(resolved.PredictionsEnabled))

			snapshot := latestSnapshot(cmd, cfg)
			if snapshot != nil {
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Last Daemon Snapshot", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintf(stdout, "Mode:       %s\n", snapshot.Mode)
				fmt.Fprintf(stdout, "Resolved:   %s\n", humanize.Time(snapshot.ResolvedAt))
				if snapshot.Mode != string(resolved.Mode) {
					fmt.Fprintln(stdout, "Note: daemon has not yet picked up the current configuration")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func latestSnapshot(cmd *cobra.Command, cfg *config.Config) *store.PolicySnapshot {
	st, err := store.Open(cfg)
	if err != nil {
		return nil
	}
	defer st.Close()
	snapshot, err := st.LatestPolicySnapshot(cmd.Context())
	if err != nil {
		return nil
	}
	return snapshot
}
