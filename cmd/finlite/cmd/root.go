// Package cmd provides the CLI commands for the FinLite backend.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/claracenn/finlite/internal/config"
	"github.com/claracenn/finlite/internal/logging"
	"github.com/claracenn/finlite/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the finlite CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finlite",
		Short: "Question answering over spreadsheet workbooks",
		Long: `FinLite answers natural-language questions over tabular workbook data.

It retrieves the most relevant row-snippets with hybrid search (BM25 +
embeddings), gates answers on evidence quality, and generates responses with
a local language model.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("finlite version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.finlite/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = teardownLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration from the --config flag (or defaults).
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// setupLogging initializes file logging before any command runs.
func setupLogging(cmd *cobra.Command, args []string) error {
	lcfg := logging.DefaultConfig()
	if debugMode {
		lcfg = logging.DebugConfig()
	}

	cleanup, err := logging.SetupDefault(lcfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	return nil
}

// teardownLogging flushes and closes the log file.
func teardownLogging(cmd *cobra.Command, args []string) {
	if loggingCleanup != nil {
		loggingCleanup()
	}
}
