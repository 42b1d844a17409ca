package main

import (
	"fmt"

	"github.com/nvandessel/strangeloop/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect strangeloop configuration",
		Long: `View and check configuration settings.

Configuration is read from ~/.strangeloop/config.yaml (or --config) and then
from STRANGELOOP_* environment variables.

Examples:
  strangeloop config list                    # Effective settings as YAML
  strangeloop config list --json
  strangeloop config validate exhibit.yaml   # Check a file without using it
  strangeloop config path`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigValidateCmd(),
		newConfigPathCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file",
		Long: `Load a configuration file and check every setting. Without an argument
the effective configuration (including environment overrides) is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var (
				cfg *config.Config
				err error
			)
			source := "effective configuration"
			if len(args) == 1 {
				source = args[0]
				cfg, err = config.LoadFromFile(args[0])
				if err == nil {
					err = cfg.Validate()
				}
			} else {
				cfg, err = loadConfig(cmd)
			}

			if jsonOut {
				result := map[string]interface{}{
					"source": source,
					"valid":  err == nil,
				}
				if err != nil {
					result["error"] = err.Error()
				}
				if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
					return werr
				}
				return err
			}

			if err != nil {
				return fmt.Errorf("%s: %w", source, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", source)
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				defaultPath, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
