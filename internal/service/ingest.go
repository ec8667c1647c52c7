// Package service runs the ingest pipeline and answers searches over the
// text store and vector index.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"semsearch/internal/domain"
	"semsearch/internal/embedding"
	"semsearch/internal/identity"
	"semsearch/internal/metrics"
)

var tracer = otel.Tracer("semsearch.service")

// Chunker turns one document into its ordered segment texts.
type Chunker interface {
	Chunk(doc domain.Document) ([]string, error)
}

// IngestStats summarises one ingest run.
type IngestStats struct {
	Documents int           `json:"documents"`
	Segments  int           `json:"segments"`
	FirstKey  int64         `json:"first_key"`
	LastKey   int64         `json:"last_key"`
	Duration  time.Duration `json:"duration"`
}

// Ingester writes a corpus into the text store and a freshly recreated vector index.
type Ingester struct {
	chunker    Chunker
	embedder   domain.Embedder
	texts      domain.TextStore
	index      domain.VectorIndex
	collection string
	workers    int
	seq        *identity.Sequence
	logger     *zap.Logger
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithWorkers bounds the number of concurrent embedding calls.
func WithWorkers(n int) IngesterOption {
	return func(i *Ingester) {
		if n > 0 {
			i.workers = n
		}
	}
}

// WithSequence injects the key generator. By default each run continues
// after the largest key in the text store.
func WithSequence(seq *identity.Sequence) IngesterOption {
	return func(i *Ingester) { i.seq = seq }
}

// WithCollection names the collection recorded in the index info.
func WithCollection(name string) IngesterOption {
	return func(i *Ingester) { i.collection = name }
}

func WithIngestLogger(l *zap.Logger) IngesterOption {
	return func(i *Ingester) {
		if l != nil {
			i.logger = l
		}
	}
}

func NewIngester(chunker Chunker, embedder domain.Embedder, texts domain.TextStore, index domain.VectorIndex, opts ...IngesterOption) *Ingester {
	i := &Ingester{
		chunker:  chunker,
		embedder: embedder,
		texts:    texts,
		index:    index,
		workers:  4,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type chunkedDocument struct {
	doc   domain.Document
	texts []string
}

// Ingest segments every document, recreates the vector index and writes each
// segment's text row followed by its vector point, in key order. The first
// failure aborts the run; rows already written are left in place.
func (i *Ingester) Ingest(ctx context.Context, docs []domain.Document) (stats IngestStats, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Ingester.Ingest")
	defer func() {
		stats.Duration = time.Since(start)
		metrics.IngestRuns.WithLabelValues(metrics.Result(err)).Inc()
		metrics.IngestDuration.Observe(stats.Duration.Seconds())
		endSpan(span, err)
	}()
	span.SetAttributes(attribute.Int("documents", len(docs)))

	chunked, corpus, err := i.chunkAll(docs)
	if err != nil {
		return stats, err
	}
	stats.Documents = len(docs)
	if len(corpus) == 0 {
		// An embedder that learns its dimension from the corpus has none to give here.
		if dim := i.embedder.Dimension(); dim > 0 {
			if _, err := i.recreate(ctx, dim); err != nil {
				return stats, err
			}
		}
		i.logger.Info("no segments to ingest", zap.Int("documents", len(docs)))
		return stats, nil
	}

	if p, ok := i.embedder.(domain.Preparer); ok {
		if err := p.Prepare(ctx, corpus); err != nil {
			return stats, fmt.Errorf("preparing embedder: %w", err)
		}
	}
	dim := i.embedder.Dimension()
	if dim <= 0 {
		return stats, fmt.Errorf("embedder %s reports dimension %d", i.embedder.Name(), dim)
	}
	info, err := i.recreate(ctx, dim)
	if err != nil {
		return stats, err
	}

	seq := i.seq
	if seq == nil {
		maxKey, err := i.texts.MaxKey(ctx)
		if err != nil {
			return stats, fmt.Errorf("reading max key: %w", err)
		}
		seq = identity.NewSequence(maxKey + 1)
	}
	alloc := identity.NewAllocator(seq)
	i.logger.Info("ingest started",
		zap.Int("documents", len(docs)),
		zap.Int("segments", len(corpus)),
		zap.String("embedder", info.Model),
		zap.Int("dimension", dim),
		zap.Int64("first_key", seq.Last()+1))

	for _, cd := range chunked {
		segs := alloc.Allocate(cd.doc, cd.texts)
		if len(segs) == 0 {
			continue
		}
		if stats.Segments == 0 {
			stats.FirstKey = segs[0].SurrogateKey
		}
		vectors, err := i.embedAll(ctx, segs)
		if err != nil {
			return stats, fmt.Errorf("document %d: %w", cd.doc.ID, err)
		}
		for j, seg := range segs {
			if err := i.texts.Insert(ctx, seg); err != nil {
				return stats, fmt.Errorf("document %d: %w", cd.doc.ID, err)
			}
			point := domain.VectorPoint{ID: seg.SurrogateKey, Vector: vectors[j], Payload: domain.PayloadOf(seg)}
			if err := i.index.Upsert(ctx, []domain.VectorPoint{point}); err != nil {
				return stats, fmt.Errorf("document %d: upserting point %d: %w", cd.doc.ID, seg.SurrogateKey, err)
			}
			stats.Segments++
			stats.LastKey = seg.SurrogateKey
			metrics.SegmentsIngested.Inc()
		}
		metrics.DocumentsIngested.Inc()
		i.logger.Debug("document ingested",
			zap.Int64("document_id", cd.doc.ID),
			zap.String("title", cd.doc.Title),
			zap.Int("segments", len(segs)))
	}

	i.logger.Info("ingest finished",
		zap.Int("documents", stats.Documents),
		zap.Int("segments", stats.Segments),
		zap.Int64("first_key", stats.FirstKey),
		zap.Int64("last_key", stats.LastKey),
		zap.Duration("duration", time.Since(start)))
	return stats, nil
}

// recreate empties the vector index and records which embedder fills it.
func (i *Ingester) recreate(ctx context.Context, dim int) (domain.IndexInfo, error) {
	if err := i.index.Recreate(ctx, dim); err != nil {
		return domain.IndexInfo{}, fmt.Errorf("recreating vector index: %w", err)
	}
	info := domain.IndexInfo{Model: i.embedder.Name(), Dimension: dim, Collection: i.collection}
	if err := i.texts.SaveIndexInfo(ctx, info); err != nil {
		return domain.IndexInfo{}, fmt.Errorf("recording index info: %w", err)
	}
	return info, nil
}

func (i *Ingester) chunkAll(docs []domain.Document) ([]chunkedDocument, []string, error) {
	chunked := make([]chunkedDocument, 0, len(docs))
	var corpus []string
	for _, d := range docs {
		texts, err := i.chunker.Chunk(d)
		if err != nil {
			return nil, nil, err
		}
		chunked = append(chunked, chunkedDocument{doc: d, texts: texts})
		corpus = append(corpus, texts...)
	}
	return chunked, corpus, nil
}

// embedAll embeds segment contents with at most i.workers calls in flight.
// Vectors are returned in segment order.
func (i *Ingester) embedAll(ctx context.Context, segs []domain.Segment) ([][]float32, error) {
	vectors := make([][]float32, len(segs))
	dim := i.embedder.Dimension()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for j := range segs {
		g.Go(func() error {
			began := time.Now()
			vec, err := i.embedder.Embed(gctx, segs[j].Content)
			metrics.EmbedDuration.Observe(time.Since(began).Seconds())
			if err != nil {
				return fmt.Errorf("embedding segment %d: %w", segs[j].SurrogateKey, err)
			}
			if err := embedding.CheckDimension(vec, dim); err != nil {
				return fmt.Errorf("embedding segment %d: %w", segs[j].SurrogateKey, err)
			}
			vectors[j] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Reset clears the text store. The vector index is recreated by every Ingest.
func (i *Ingester) Reset(ctx context.Context) error {
	if err := i.texts.Clear(ctx); err != nil {
		return fmt.Errorf("clearing text store: %w", err)
	}
	i.logger.Info("text store cleared")
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
