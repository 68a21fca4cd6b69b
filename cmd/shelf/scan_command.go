package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shelf/internal/ipc"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Request a scan of the watched folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Scan("manual")
				if err != nil {
					return err
				}
				if !resp.Accepted {
					return fmt.Errorf("scan rejected: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Scan requested")
				return nil
			})
		},
	}
}
