package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"semsearch/internal/domain"
	"semsearch/internal/metrics"
)

// Resolver answers free-text queries with ranked, projected segments.
// It only reads from its stores and is safe for concurrent use.
type Resolver struct {
	embedder domain.Embedder
	texts    domain.TextStore
	index    domain.VectorIndex
	logger   *zap.Logger
}

func NewResolver(embedder domain.Embedder, texts domain.TextStore, index domain.VectorIndex, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{embedder: embedder, texts: texts, index: index, logger: logger}
}

// Search embeds query, asks the vector index for the k nearest points and
// resolves each hit to its stored segment, keeping the index's ranking.
// Only the requested fields are returned.
func (r *Resolver) Search(ctx context.Context, query string, k int, fields []string) (results []domain.Result, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Resolver.Search")
	defer func() {
		metrics.Searches.WithLabelValues(metrics.Result(err)).Inc()
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
		endSpan(span, err)
	}()
	span.SetAttributes(attribute.Int("k", k))

	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidLimit, k)
	}
	if err := domain.ValidateFields(fields); err != nil {
		return nil, err
	}

	info, err := r.texts.IndexInfo(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.Debug("search before any ingest", zap.String("query", query))
		return []domain.Result{}, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Model != r.embedder.Name() || info.Dimension != r.embedder.Dimension() {
		return nil, fmt.Errorf("%w: index built with %s (%d), query embedder is %s (%d)",
			domain.ErrEmbeddingMismatch, info.Model, info.Dimension, r.embedder.Name(), r.embedder.Dimension())
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	hits, err := r.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching vector index: %w", err)
	}
	if len(hits) == 0 {
		return []domain.Result{}, nil
	}

	keys := make([]int64, len(hits))
	for i, h := range hits {
		keys[i] = h.ID
	}
	rows, err := r.texts.GetByKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("resolving hits: %w", err)
	}

	results = make([]domain.Result, 0, len(hits))
	for _, h := range hits {
		seg, ok := rows[h.ID]
		if !ok {
			return nil, fmt.Errorf("%w: point %d", domain.ErrUnresolvedHit, h.ID)
		}
		if got := domain.PayloadOf(seg); got != h.Payload {
			return nil, fmt.Errorf("%w: point %d has %+v, row has %+v", domain.ErrPayloadMismatch, h.ID, h.Payload, got)
		}
		results = append(results, domain.Result{Score: h.Score, Fields: domain.Project(seg, fields)})
	}
	r.logger.Debug("search finished",
		zap.String("query", query),
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)))
	return results, nil
}
