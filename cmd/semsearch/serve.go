package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"semsearch/internal/corpus"
	"semsearch/internal/httpapi"
)

var serveIngest []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve searches over HTTP",
	Long: `Starts the HTTP API:

  GET  /health
  POST /search   {"query": "...", "k": 5, "output_keys": ["title", "url"]}
  GET  /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringSliceVar(&serveIngest, "ingest", nil, "inputs to ingest (with a cleared text store) before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(serveIngest) > 0 {
		docs, err := corpus.Load(serveIngest)
		if err != nil {
			return err
		}
		if _, err := a.ingest(ctx, docs, true); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
	}

	srv, err := httpapi.NewServer(a.resolver, logger, httpapi.Config{
		Addr:          cfg.Server.Addr,
		DefaultK:      cfg.Search.NResults,
		DefaultFields: cfg.Search.OutputKeys,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
