package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shelf/internal/ipc"
)

func newFoldersCommand(ctx *commandContext) *cobra.Command {
	foldersCmd := &cobra.Command{
		Use:   "folders",
		Short: "Manage watched folders",
	}

	foldersCmd.AddCommand(newFoldersListCommand(ctx))
	foldersCmd.AddCommand(newFoldersEnableCommand(ctx, true))
	foldersCmd.AddCommand(newFoldersEnableCommand(ctx, false))

	return foldersCmd
}

func newFoldersListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List watched folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.FoldersList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Folders)
				}
				if len(resp.Folders) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No folders registered")
					return nil
				}
				titler := cases.Title(language.English)
				rows := make([][]string, 0, len(resp.Folders))
				for _, folder := range resp.Folders {
					rows = append(rows, []string{
						strconv.FormatInt(folder.ID, 10),
						titler.String(folder.Name),
						folder.Type,
						folder.Path,
						yesNo(folder.Enabled),
						formatTimestamp(folder.LastScanAt),
					})
				}
				table := renderTable(
					[]string{"ID", "Name", "Type", "Path", "Enabled", "Last Scan"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newFoldersEnableCommand(ctx *commandContext, enable bool) *cobra.Command {
	use := "enable <name>"
	short := "Include a folder in future scans"
	verb := "enabled"
	if !enable {
		use = "disable <name>"
		short = "Exclude a folder from future scans"
		verb = "disabled"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.FolderEnable(args[0], enable); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Folder %q %s\n", args[0], verb)
				return nil
			})
		},
	}
}
