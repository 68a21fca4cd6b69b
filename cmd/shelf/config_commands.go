package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shelf/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage shelf configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	configCmd.AddCommand(newConfigInitCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigPathCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigTarget(ctx)
			if err != nil {
				return err
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\n", path)
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedPath, exists, err := loadConfigForInspection(ctx)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(stdout, "# loaded from %s\n", resolvedPath)
			} else {
				fmt.Fprintln(stdout, "# no config file found, showing defaults")
			}
			return writeJSON(cmd, cfg)
		},
	}
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigTarget(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, resolvedPath, exists, err := loadConfigForInspection(ctx)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if !exists {
				fmt.Fprintln(stdout, "No config file found; defaults are valid")
				return nil
			}
			fmt.Fprintf(stdout, "Configuration at %s is valid\n", resolvedPath)
			return nil
		},
	}
}

func loadConfigForInspection(ctx *commandContext) (*config.Config, string, bool, error) {
	var path string
	if ctx.configFlag != nil {
		path = strings.TrimSpace(*ctx.configFlag)
	}
	return config.Load(path)
}

func resolveConfigTarget(ctx *commandContext) (string, error) {
	if ctx.configFlag != nil {
		if path := strings.TrimSpace(*ctx.configFlag); path != "" {
			return config.ExpandPath(path)
		}
	}
	return config.DefaultConfigPath()
}
