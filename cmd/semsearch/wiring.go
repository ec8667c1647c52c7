package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"semsearch/internal/chunker"
	"semsearch/internal/config"
	"semsearch/internal/domain"
	"semsearch/internal/embedding/fastembed"
	"semsearch/internal/embedding/openai"
	"semsearch/internal/embedding/tfidf"
	"semsearch/internal/service"
	"semsearch/internal/textstore/memory"
	"semsearch/internal/textstore/sqlite"
	"semsearch/internal/vectorstore/chromem"
	vmemory "semsearch/internal/vectorstore/memory"
	"semsearch/internal/vectorstore/qdrant"
)

// app holds the components assembled from one configuration.
type app struct {
	cfg      *config.AppConfig
	logger   *zap.Logger
	embedder domain.Embedder
	texts    domain.TextStore
	index    domain.VectorIndex
	ingester *service.Ingester
	resolver *service.Resolver
	closers  []func() error
}

func newApp(cfg *config.AppConfig, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.texts, err = newTextStore(cfg.TextSource); err != nil {
		return nil, fmt.Errorf("text store: %w", err)
	}
	a.closers = append(a.closers, a.texts.Close)

	if a.embedder, err = newEmbedder(cfg); err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	if c, ok := a.embedder.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	if a.index, err = newVectorIndex(cfg.VectorDB, logger); err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	a.closers = append(a.closers, a.index.Close)

	ch, err := newChunker(cfg.Segmentor)
	if err != nil {
		return nil, err
	}
	a.ingester = service.NewIngester(ch, a.embedder, a.texts, a.index,
		service.WithWorkers(cfg.Ingest.Workers),
		service.WithCollection(cfg.VectorDB.CollectionName),
		service.WithIngestLogger(logger))
	a.resolver = service.NewResolver(a.embedder, a.texts, a.index, logger)
	return a, nil
}

// Close releases the components in reverse order of construction.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newChunker(cfg config.SegmentorConfig) (*chunker.SentenceChunker, error) {
	splitter, err := chunker.NewSplitter(cfg.Splitter)
	if err != nil {
		return nil, err
	}
	return chunker.NewSentenceChunker(splitter, cfg.MaxSegmentSize, cfg.NOverlappingSentences), nil
}

func newTextStore(cfg config.TextSourceConfig) (domain.TextStore, error) {
	switch cfg.Type {
	case "sqlite", "":
		return sqlite.NewStore(cfg.TextDataFile)
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown text source: %s", cfg.Type)
	}
}

func newEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	ec := cfg.EmbeddingModel
	switch ec.Type {
	case "tfidf", "":
		if cfg.TextSource.Type == "memory" {
			return tfidf.NewEmbedder(), nil
		}
		return tfidf.Open(tfidfStatePath(cfg))
	case "openai":
		model := ec.OpenAI.Model
		if ec.ModelNameOrPath != "" {
			model = ec.ModelNameOrPath
		}
		return openai.NewClient(openai.Config{
			BaseURL:           ec.OpenAI.BaseURL,
			APIKeyEnv:         ec.OpenAI.APIKeyEnv,
			Model:             model,
			Dimensions:        ec.OpenAI.Dimensions,
			Timeout:           time.Duration(ec.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries:        ec.OpenAI.MaxRetries,
			RequestsPerSecond: ec.OpenAI.RequestsPerSecond,
		})
	case "fastembed":
		return fastembed.New(fastembed.Config{Model: ec.ModelNameOrPath, CacheDir: ec.CacheFolder})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", ec.Type)
	}
}

// tfidfStatePath keeps the vocabulary in the cache folder, or next to the
// text store when none is configured.
func tfidfStatePath(cfg *config.AppConfig) string {
	dir := cfg.EmbeddingModel.CacheFolder
	if dir == "" {
		dir = filepath.Dir(cfg.TextSource.TextDataFile)
	}
	return filepath.Join(dir, "tfidf.json")
}

func newVectorIndex(cfg config.VectorDBConfig, logger *zap.Logger) (domain.VectorIndex, error) {
	switch cfg.Type {
	case "memory":
		return vmemory.NewStorage(), nil
	case "chromem", "":
		return chromem.New(chromem.Config{Path: cfg.Path, Collection: cfg.CollectionName})
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.CollectionName,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

// ingest runs one ingest, clearing the text store first when reset is set.
func (a *app) ingest(ctx context.Context, docs []domain.Document, reset bool) (service.IngestStats, error) {
	if reset {
		if err := a.ingester.Reset(ctx); err != nil {
			return service.IngestStats{}, err
		}
	}
	return a.ingester.Ingest(ctx, docs)
}
