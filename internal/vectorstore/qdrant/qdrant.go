package qdrant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"semsearch/internal/domain"
	"semsearch/internal/vectorstore"
)

var tracer = otel.Tracer("semsearch.vectorstore.qdrant")

// client is the subset of *qdrant.Client the store uses.
type client interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	DeleteCollection(ctx context.Context, collectionName string) error
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Close() error
}

// Config configures the gRPC connection to Qdrant.
type Config struct {
	Host       string
	Port       int // gRPC port, not the REST port
	APIKey     string
	UseTLS     bool
	Collection string
	Timeout    time.Duration

	MaxRetries     int
	RetryBackoff   time.Duration
	MaxMessageSize int
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Storage is a VectorIndex backed by a Qdrant collection.
type Storage struct {
	client    client
	cfg       Config
	dimension int
	logger    *zap.Logger
}

// NewStorage connects to Qdrant and checks that the server is healthy.
func NewStorage(cfg Config, logger *zap.Logger) (*Storage, error) {
	cfg.applyDefaults()
	if err := vectorstore.ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC connection is plaintext", zap.String("host", cfg.Host))
	}
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}
	s := newStorage(c, cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if _, err := c.HealthCheck(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("qdrant health check failed: %w", err)
	}
	return s, nil
}

func newStorage(c client, cfg Config, logger *zap.Logger) *Storage {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{client: c, cfg: cfg, logger: logger}
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	switch status.Code(err) {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// retry runs op with exponential backoff while it fails with transient errors.
func (s *Storage) retry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	backoff := s.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		err := op(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("qdrant %s: %w", name, err)
		}
		if attempt == s.cfg.MaxRetries {
			return fmt.Errorf("qdrant %s failed after %d retries: %w", name, s.cfg.MaxRetries, err)
		}
		s.logger.Debug("retrying qdrant call",
			zap.String("op", name), zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("qdrant %s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// Recreate drops the collection if present and creates it with cosine distance.
func (s *Storage) Recreate(ctx context.Context, dimension int) (err error) {
	ctx, span := tracer.Start(ctx, "qdrant.Recreate")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("collection", s.cfg.Collection), attribute.Int("dimension", dimension))

	if dimension <= 0 {
		return domain.ErrDimensionMismatch
	}
	var exists bool
	err = s.retry(ctx, "collection_exists", func(ctx context.Context) error {
		var err error
		exists, err = s.client.CollectionExists(ctx, s.cfg.Collection)
		return err
	})
	if err != nil {
		return err
	}
	if exists {
		if err = s.retry(ctx, "delete_collection", func(ctx context.Context) error {
			return s.client.DeleteCollection(ctx, s.cfg.Collection)
		}); err != nil {
			return err
		}
	}
	err = s.retry(ctx, "create_collection", func(ctx context.Context) error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		return err
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, points []domain.VectorPoint) (err error) {
	ctx, span := tracer.Start(ctx, "qdrant.Upsert")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("points", len(points)))

	if err = vectorstore.CheckPoints(points, s.dimension); err != nil {
		return err
	}
	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: map[string]*qdrant.Value{
				"title":       qdrant.NewValueString(p.Payload.Title),
				"url":         qdrant.NewValueString(p.Payload.URL),
				"document_id": qdrant.NewValueInt(p.Payload.DocumentID),
				"segment_id":  qdrant.NewValueInt(int64(p.Payload.SegmentID)),
			},
		}
	}
	return s.retry(ctx, "upsert", func(ctx context.Context) error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.cfg.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         structs,
		})
		return err
	})
}

func (s *Storage) Search(ctx context.Context, vector []float32, k int) (hits []domain.Hit, err error) {
	ctx, span := tracer.Start(ctx, "qdrant.Search")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("k", k))

	if err = vectorstore.CheckQuery(vector, k, s.dimension); err != nil {
		return nil, err
	}
	var scored []*qdrant.ScoredPoint
	err = s.retry(ctx, "query", func(ctx context.Context) error {
		var err error
		scored, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.cfg.Collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		if status.Code(errors.Unwrap(err)) == grpccodes.InvalidArgument {
			return nil, fmt.Errorf("%w: %v", domain.ErrDimensionMismatch, err)
		}
		return nil, err
	}
	hits = make([]domain.Hit, 0, len(scored))
	for _, sp := range scored {
		hits = append(hits, toHit(sp))
	}
	return hits, nil
}

func toHit(sp *qdrant.ScoredPoint) domain.Hit {
	p := sp.GetPayload()
	return domain.Hit{
		ID:    int64(sp.GetId().GetNum()),
		Score: sp.GetScore(),
		Payload: domain.Payload{
			Title:      p["title"].GetStringValue(),
			URL:        p["url"].GetStringValue(),
			DocumentID: p["document_id"].GetIntegerValue(),
			SegmentID:  int(p["segment_id"].GetIntegerValue()),
		},
	}
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n uint64
	err := s.retry(ctx, "count", func(ctx context.Context) error {
		var err error
		n, err = s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.cfg.Collection,
			Exact:          qdrant.PtrOf(true),
		})
		return err
	})
	return int(n), err
}

func (s *Storage) Close() error { return s.client.Close() }

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
