// Package cmd provides the CLI commands for Parallax.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/parallax-rag/parallax/internal/config"
	"github.com/parallax-rag/parallax/internal/logging"
	"github.com/parallax-rag/parallax/internal/profiling"
	"github.com/parallax-rag/parallax/pkg/version"
)

var (
	cfgDir          string
	debugMode       bool
	cpuProfilePath  string
	heapProfilePath string
	loggingCleanup  func()
	profileCleanup  func()

	// cfg is loaded once in the persistent pre-run and shared by all
	// subcommands.
	cfg *config.Config
)

// NewRootCmd creates the root command for the parallax CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parallax",
		Short: "Multi-tenant ingestion and retrieval over heterogeneous search backends",
		Long: `Parallax orchestrates document ingestion and hybrid retrieval across
three backends: a managed cloud search service, a pgvector similarity
store, and a temporal knowledge graph.

Every operation is scoped to a tenant and merged results carry per-backend
provenance for citation.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("parallax version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgDir, "config-dir", ".", "Directory containing .parallax.yaml")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.parallax/logs/")
	cmd.PersistentFlags().StringVar(&cpuProfilePath, "cpu-profile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&heapProfilePath, "heap-profile", "", "Write a heap profile to this file on exit")
	_ = cmd.PersistentFlags().MarkHidden("cpu-profile")
	_ = cmd.PersistentFlags().MarkHidden("heap-profile")

	cmd.PersistentPreRunE = setupConfigAndLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if profileCleanup != nil {
			profileCleanup()
			profileCleanup = nil
		}
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newTenantCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupConfigAndLogging loads .env, the YAML config, and the logger.
func setupConfigAndLogging(_ *cobra.Command, _ []string) error {
	// A missing .env is fine; explicit config wins over it anyway.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load(cfgDir)
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		FilePath:      cfg.Logging.File,
		WriteToStderr: false,
	}
	if debugMode {
		logCfg.Level = "debug"
		if logCfg.FilePath == "" {
			logCfg.FilePath = logging.DefaultLogPath()
		}
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	if cpuProfilePath != "" || heapProfilePath != "" {
		p := profiling.NewProfiler()
		var stopCPU func()
		if cpuProfilePath != "" {
			stopCPU, err = p.StartCPU(cpuProfilePath)
			if err != nil {
				return err
			}
		}
		profileCleanup = func() {
			if stopCPU != nil {
				stopCPU()
			}
			if heapProfilePath != "" {
				if err := p.WriteHeap(heapProfilePath); err != nil {
					slog.Warn("failed to write heap profile", "error", err)
				}
			}
		}
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCmd()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	return root.Execute()
}
