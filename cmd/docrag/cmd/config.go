package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docrag/configs"
	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/output"
)

func newConfigCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create configuration",
		Long: `Show the effective configuration or create a project configuration file.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config ($XDG_CONFIG_HOME/docrag/config.yaml)
  3. Project config (.docrag.yaml)
  4. .env file in the project directory
  5. Environment variables (DOCRAG_*)

API keys are masked in the output.`,
		Example: `  # Show the effective configuration
  docrag config

  # Create .docrag.yaml in the project directory
  docrag config init

  # Print the configuration file locations
  docrag config path`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force     bool
		effective bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .docrag.yaml in the project directory",
		Long: `Create the project configuration file from the commented template.

With --effective the file holds the current effective configuration instead,
which pins every value that environment variables or the user config set.
An existing file is only replaced with --force, after a backup is taken.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force, effective)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	cmd.Flags().BoolVar(&effective, "effective", false, "Write the effective configuration instead of the template")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "user:    %s\n", config.GetUserConfigPath())
			_, _ = fmt.Fprintf(w, "project: %s\n", filepath.Join(projectRoot(), config.ProjectConfigName))
			return nil
		},
	}
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := config.Load(projectRoot())
	if err != nil {
		return err
	}
	redacted := cfg.Redacted()

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(redacted)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(redacted); err != nil {
		return err
	}
	return enc.Close()
}

func runConfigInit(cmd *cobra.Command, force, effective bool) error {
	out := output.New(cmd.OutOrStdout())
	path := filepath.Join(projectRoot(), config.ProjectConfigName)

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Status("💡", "Use --force to replace it (a backup is kept)")
			return nil
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return err
		}
		out.Statusf("💾", "Backed up to %s", backup)
	}

	if effective {
		cfg, err := config.Load(projectRoot())
		if err != nil {
			return err
		}
		// Keys stay in the environment, never in the project file.
		cfg.Embeddings.AzureAPIKey = ""
		cfg.Embeddings.OpenAIAPIKey = ""
		if err := cfg.WriteYAML(path); err != nil {
			return err
		}
	} else if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return errors.IOError("failed to write configuration", err)
	}

	out.Successf("Created %s", path)
	return nil
}
