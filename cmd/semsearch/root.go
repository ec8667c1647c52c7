package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"semsearch/internal/config"
	"semsearch/internal/logging"
)

var (
	cfgPath string
	verbose bool

	cfg    *config.AppConfig
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "semsearch",
	Short: "Semantic search over segmented documents",
	Long: `semsearch splits documents into overlapping sentence segments, embeds them
into a vector index and answers free-text queries with the closest segments.

Configuration is read from --config, ./config.yaml or ~/.config/semsearch/config.yaml.
Any value can be overridden with SEMSEARCH_<SECTION>_<FIELD>, e.g.
SEMSEARCH_SEARCH_N_RESULTS=10.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger, err = logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("path", cfgPath))
	return nil
}
