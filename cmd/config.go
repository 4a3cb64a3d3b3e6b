package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dataset-m/dsm/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings.yaml",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(&settings)
			if err != nil {
				return fmt.Errorf("failed to marshal YAML: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", dir, data)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Example: `  dsm config set provider openai
  dsm config set concurrency 8
  dsm config set log_level debug`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path(config.SettingsFile)
			if err != nil {
				return err
			}
			s, err := config.LoadSettingsFile(path)
			if err != nil {
				return err
			}

			key, value := args[0], args[1]
			switch key {
			case "log_level":
				s.LogLevel = value
			case "provider":
				s.Provider = value
			case "model":
				s.Model = value
			case "concurrency":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("concurrency must be an integer: %w", err)
				}
				s.Concurrency = n
			case "temperature":
				f, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return fmt.Errorf("temperature must be a number: %w", err)
				}
				s.Temperature = f
			default:
				return fmt.Errorf("unknown setting %q", key)
			}
			s.Validate()
			if err := config.SaveSettings(path, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	})

	return cmd
}
