package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shelf/internal/ipc"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database diagnostics",
	}

	var asJSON bool
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Show database health as reported by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DatabaseHealth()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				fmt.Fprintln(stdout, renderStatusLine("Path", statusInfo, resp.DBPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Exists", boolKind(resp.DatabaseExists), yesNo(resp.DatabaseExists), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Readable", boolKind(resp.DatabaseReadable), yesNo(resp.DatabaseReadable), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Schema", statusInfo, resp.SchemaVersion, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Integrity", boolKind(resp.IntegrityCheck), yesNo(resp.IntegrityCheck), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Records", statusInfo, fmt.Sprintf("%d", resp.TotalRecords), colorize))
				if resp.Error != "" {
					fmt.Fprintln(stdout, renderStatusLine("Error", statusError, resp.Error, colorize))
					return fmt.Errorf("database unhealthy")
				}
				return nil
			})
		},
	}
	healthCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	dbCmd.AddCommand(healthCmd)
	return dbCmd
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}
