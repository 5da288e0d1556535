package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/claracenn/finlite/internal/corpus"
	"github.com/claracenn/finlite/internal/embed"
	"github.com/claracenn/finlite/internal/formula"
	"github.com/claracenn/finlite/internal/gen"
	"github.com/claracenn/finlite/internal/history"
	"github.com/claracenn/finlite/internal/pipeline"
	"github.com/claracenn/finlite/internal/server"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var workbook string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the FinLite HTTP server.

The server waits for POST /initialize to load a workbook unless --workbook
is given, in which case the workbook is ingested at startup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), workbook)
		},
	}

	cmd.Flags().StringVar(&workbook, "workbook", "", "Workbook to ingest at startup")
	return cmd
}

func runServe(ctx context.Context, workbook string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := embed.NewFromConfig(ctx, cfg.Embeddings)
	if err != nil {
		return err
	}

	generator := gen.NewOllamaGenerator(gen.OllamaConfig{
		Host:  cfg.Generation.Host,
		Model: cfg.Generation.Model,
	})

	histLog := history.NewLog(cfg.ResolveHistoryPath())

	formulas, err := formula.Load(cfg.Formulas.Path)
	if err != nil {
		return err
	}
	slog.Info("formula_templates_loaded", slog.Int("count", formulas.Len()))

	pipe := pipeline.New(cfg, corpus.NewExcelReader(), embedder, generator, histLog)
	defer func() { _ = pipe.Close() }()

	if workbook != "" {
		count, err := pipe.Initialize(ctx, workbook)
		if err != nil {
			return err
		}
		slog.Info("workbook_loaded", slog.String("path", workbook), slog.Int("snippets", count))
	}

	srv := server.New(cfg, pipe, histLog, formulas)
	httpSrv := &http.Server{
		Addr:              srv.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_listening", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown_incomplete", slog.String("error", err.Error()))
	}

	return nil
}
