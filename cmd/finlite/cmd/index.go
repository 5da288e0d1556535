package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/claracenn/finlite/internal/corpus"
	"github.com/claracenn/finlite/internal/embed"
	"github.com/claracenn/finlite/internal/history"
	"github.com/claracenn/finlite/internal/pipeline"
)

// newIndexCmd creates the index command: a one-shot corpus and vector-index
// build without serving.
func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <workbook>",
		Short: "Build the vector index for a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args[0])
		},
	}
	return cmd
}

func runIndex(cmd *cobra.Command, workbook string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	embedder, err := embed.NewFromConfig(ctx, cfg.Embeddings)
	if err != nil {
		return err
	}

	histLog := history.NewLog(cfg.ResolveHistoryPath())

	// No generator: indexing never generates.
	pipe := pipeline.New(cfg, corpus.NewExcelReader(), embedder, nil, histLog)
	defer func() { _ = pipe.Close() }()

	count, err := pipe.Initialize(ctx, workbook)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d snippets to %s\n", count, cfg.ResolveIndexPath())
	return nil
}
