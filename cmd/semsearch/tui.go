package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"semsearch/internal/corpus"
	"semsearch/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [inputs...]",
	Short: "Search interactively in the terminal",
	Long: `Opens an interactive search screen. When inputs are given they are ingested
first with a cleared text store, which also makes the in-memory stores usable.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	banner := fmt.Sprintf("%s index %q", a.embedder.Name(), cfg.VectorDB.CollectionName)
	if len(args) > 0 {
		docs, err := corpus.Load(args)
		if err != nil {
			return err
		}
		stats, err := a.ingest(cmd.Context(), docs, true)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		banner = fmt.Sprintf("Ingested %d documents, %d segments. %s", stats.Documents, stats.Segments, banner)
	}

	m := tui.New(cmd.Context(), a.resolver, tui.Options{
		K:      cfg.Search.NResults,
		Fields: cfg.Search.OutputKeys,
		Banner: banner,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
