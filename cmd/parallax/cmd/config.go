package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/parallax-rag/parallax/configs"
	"github.com/parallax-rag/parallax/internal/config"
	"github.com/parallax-rag/parallax/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the Parallax configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/parallax/config.yaml)
  3. Project config (.parallax.yaml)
  4. Environment variables (PARALLAX_*)`,
		Example: `  # Create user config from template
  parallax config init

  # Show effective configuration (merged from all sources)
  parallax config show

  # Print user config file path
  parallax config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	var project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from a template",
		Long: `Create a configuration file from the embedded template.

By default this creates the user config at ~/.config/parallax/config.yaml
(or $XDG_CONFIG_HOME/parallax/config.yaml). With --project it creates a
.parallax.yaml in the current directory instead.`,
		Example: `  # Create user config
  parallax config init

  # Create a project config in the current directory
  parallax config init --project

  # Overwrite an existing file
  parallax config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force, project)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&project, "project", false, "Create a project config (.parallax.yaml) instead")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging all sources:
defaults, user config, project config, and environment variables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.UserConfigPath())
			return nil
		},
	}
}

func runConfigInit(cmd *cobra.Command, force, project bool) error {
	out := output.New(cmd.OutOrStdout())

	path := config.UserConfigPath()
	template := configs.UserConfigTemplate
	if project {
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		path = filepath.Join(dir, ".parallax.yaml")
		template = configs.ProjectConfigTemplate
	}

	if _, err := os.Stat(path); err == nil && !force {
		out.Warning("Configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Status("💡", "Use --force to overwrite")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Status("💡", "Edit the file, then run 'parallax config show' to verify")

	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	merged, err := config.Load(dir)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(merged)
	}

	data, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
