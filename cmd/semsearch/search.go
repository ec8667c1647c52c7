package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"semsearch/internal/domain"
)

var (
	searchLimit  int
	searchFields []string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed segments",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "k", 0, "maximum number of results (default search.n_results)")
	searchCmd.Flags().StringSliceVar(&searchFields, "fields", nil, "fields to return (default search.output_keys)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	k := cfg.Search.NResults
	if cmd.Flags().Changed("limit") {
		k = searchLimit
	}
	fields := cfg.Search.OutputKeys
	if cmd.Flags().Changed("fields") {
		fields = searchFields
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.resolver.Search(cmd.Context(), strings.Join(args, " "), k, fields)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	outputSearchTable(cmd, results, fields)
	return nil
}

func outputSearchJSON(cmd *cobra.Command, results []domain.Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.Result, fields []string) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}
	order := append([]string(nil), fields...)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i] != domain.FieldContent && order[j] == domain.FieldContent
	})
	for i, r := range results {
		cmd.Printf("[%d] score=%.4f\n", i+1, r.Score)
		for _, f := range order {
			cmd.Printf("    %s: %v\n", f, r.Fields[f])
		}
		cmd.Println()
	}
}
