package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shelf/internal/ipc"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and manage tracked files",
	}

	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsShowCommand(ctx))
	recordsCmd.AddCommand(newRecordsSkipCommand(ctx))

	return recordsCmd
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordsList(listStatuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Records)
				}
				if len(resp.Records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tracked files")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Name", "Status", "Size", "Suggestion", "Source", "Updated"},
					buildRecordRows(resp.Records),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (pending, ready, completed, skipped, missing)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRecordsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for a tracked file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordDescribe(id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Record)
				}
				record := resp.Record
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "ID:          %d\n", record.ID)
				fmt.Fprintf(stdout, "Path:        %s\n", record.Path)
				fmt.Fprintf(stdout, "Status:      %s\n", record.Status)
				fmt.Fprintf(stdout, "Size:        %s\n", humanize.Bytes(uint64(record.SizeBytes)))
				if record.SuggestedDestination != "" {
					fmt.Fprintf(stdout, "Suggestion:  %s (%s, %.2f)\n",
						record.SuggestedDestination, record.SuggestionSource, record.SuggestionConfidence)
				}
				if record.ErrorMessage != "" {
					fmt.Fprintf(stdout, "Error:       %s\n", record.ErrorMessage)
				}
				fmt.Fprintf(stdout, "First seen:  %s\n", humanize.Time(record.FirstSeenAt))
				fmt.Fprintf(stdout, "Updated:     %s\n", humanize.Time(record.UpdatedAt))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRecordsSkipCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <id>",
		Short: "Dismiss a tracked file so it is never re-suggested",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.RecordSkip(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Record %d skipped\n", id)
				return nil
			})
		},
	}
}

func buildRecordRows(records []ipc.FileRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		suggestion := record.SuggestedDestination
		if suggestion == "" {
			suggestion = "-"
		}
		source := record.SuggestionSource
		if source == "" || source == "none" {
			source = "-"
		}
		updated := "-"
		if !record.UpdatedAt.IsZero() {
			updated = humanize.Time(record.UpdatedAt)
		}
		rows = append(rows, []string{
			strconv.FormatInt(record.ID, 10),
			record.Name,
			record.Status,
			humanize.Bytes(uint64(record.SizeBytes)),
			suggestion,
			source,
			updated,
		})
	}
	return rows
}

func formatTimestamp(value string) string {
	if value == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return humanize.Time(parsed)
}
