package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shelf/internal/ipc"
)

func newApplyCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "apply [id...]",
		Short: "Organize ready files (all of them when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid record id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Apply(ids)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Results)
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Results) == 0 {
					fmt.Fprintln(stdout, "Nothing to organize")
					return nil
				}
				failures := 0
				for _, result := range resp.Results {
					if result.Error != "" {
						failures++
						fmt.Fprintf(stdout, "FAIL %s: %s\n", result.Name, result.Error)
						continue
					}
					fmt.Fprintf(stdout, "OK   %s -> %s\n", result.Name, result.Destination)
				}
				if failures > 0 {
					return fmt.Errorf("%d of %d transfers failed", failures, len(resp.Results))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newUndoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Reverse the most recent transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Undo()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", resp.Entry.SourcePath)
				return nil
			})
		},
	}
}

func newRedoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Re-apply the most recently undone transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Redo()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved to %s\n", resp.Entry.DestinationPath)
				return nil
			})
		},
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transfers, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Entries)
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No transfers recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					rows = append(rows, []string{
						strconv.FormatInt(entry.ID, 10),
						entry.Operation,
						entry.SourcePath,
						entry.DestinationPath,
						yesNo(entry.Undone),
						humanize.Time(entry.PerformedAt),
					})
				}
				table := renderTable(
					[]string{"ID", "Op", "Source", "Destination", "Undone", "When"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
