package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shelf/internal/ipc"
	"shelf/internal/logging"
	"shelf/internal/rules"
	"shelf/internal/store"
)

func newRulesCommand(ctx *commandContext) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect organization rules",
	}

	rulesCmd.AddCommand(newRulesListCommand(ctx))
	rulesCmd.AddCommand(newRulesShowCommand(ctx))
	rulesCmd.AddCommand(newRulesTestCommand(ctx))

	return rulesCmd
}

func newRulesListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RulesList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Rules)
				}
				if len(resp.Rules) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No rules configured")
					return nil
				}
				rows := make([][]string, 0, len(resp.Rules))
				for _, rule := range resp.Rules {
					destination := rule.Destination
					if destination == "" {
						destination = "-"
					}
					rows = append(rows, []string{
						strconv.FormatInt(rule.ID, 10),
						rule.Name,
						yesNo(rule.Enabled),
						rule.Action,
						destination,
						strconv.Itoa(rule.SortOrder),
					})
				}
				table := renderTable(
					[]string{"ID", "Name", "Enabled", "Action", "Destination", "Order"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRulesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a rule's conditions and exclusions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RulesList()
				if err != nil {
					return err
				}
				for _, rule := range resp.Rules {
					if rule.ID != id {
						continue
					}
					stdout := cmd.OutOrStdout()
					fmt.Fprintf(stdout, "ID:          %d\n", rule.ID)
					fmt.Fprintf(stdout, "Name:        %s\n", rule.Name)
					fmt.Fprintf(stdout, "Enabled:     %s\n", yesNo(rule.Enabled))
					fmt.Fprintf(stdout, "Action:      %s\n", rule.Action)
					if rule.Destination != "" {
						fmt.Fprintf(stdout, "Destination: %s\n", rule.Destination)
					}
					fmt.Fprintf(stdout, "Conditions:  %s\n", rule.Conditions)
					if rule.Exclusions != "" && rule.Exclusions != "[]" {
						fmt.Fprintf(stdout, "Exclusions:  %s\n", rule.Exclusions)
					}
					return nil
				}
				return fmt.Errorf("rule %d not found", id)
			})
		},
	}
}

// newRulesTestCommand evaluates the stored ruleset against a local file
// without involving the daemon, so rule changes can be verified offline.
func newRulesTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test <path>",
		Short: "Evaluate the ruleset against a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			ruleset, err := st.EnabledRules(cmd.Context())
			if err != nil {
				return err
			}

			file := rules.FileInfo{
				Name:       filepath.Base(path),
				Extension:  strings.TrimPrefix(filepath.Ext(path), "."),
				SizeBytes:  info.Size(),
				ModifiedAt: info.ModTime(),
			}
			engine := rules.NewEngine(logging.NewNop())
			match, ok := engine.Evaluate(file, ruleset)
			stdout := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(stdout, "No rule matches")
				return nil
			}
			fmt.Fprintf(stdout, "Matched rule: %s (id %d)\n", match.Rule.Name, match.Rule.ID)
			fmt.Fprintf(stdout, "Action:       %s\n", match.Rule.Action)
			if match.Destination != "" {
				fmt.Fprintf(stdout, "Destination:  %s\n", match.Destination)
			}
			return nil
		},
	}
}
