package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"semsearch/internal/corpus"
)

var ingestReset bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <inputs...>",
	Short: "Segment, embed and index documents",
	Long: `Reads CSV exports (document_id,title,url,content), text, markdown and PDF
files, splits them into overlapping sentence segments and writes every segment
to the text store and the vector index. Directories and glob patterns are expanded.

The vector index is rebuilt on every run. Pass --reset to also clear the text
store; without it, documents already stored are rejected as duplicates.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "clear the text store before ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := corpus.Load(args)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.ingest(ctx, docs, ingestReset)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cmd.Printf("Ingested %d documents into %d segments (keys %d-%d) in %s\n",
		stats.Documents, stats.Segments, stats.FirstKey, stats.LastKey, stats.Duration.Round(time.Millisecond))
	return nil
}
