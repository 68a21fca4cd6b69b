package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shelf/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, database, daemon, and integrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			if asJSON {
				return writeJSON(cmd, results)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range renderSectionHeader("Environment Checks", colorize) {
				fmt.Fprintln(stdout, line)
			}

			failures := 0
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failures++
				}
				fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(stdout)
			if failures > 0 {
				return fmt.Errorf("%d of %d checks failed", failures, len(results))
			}
			fmt.Fprintln(stdout, "All checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
