// Package chromem stores vectors in an embedded chromem-go database.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"

	"semsearch/internal/domain"
	"semsearch/internal/vectorstore"
)

const (
	metaTitle      = "title"
	metaURL        = "url"
	metaDocumentID = "document_id"
	metaSegmentID  = "segment_id"
	metaVectorSize = "vector_size"
	metaDistance   = "distance"
)

var errNoEmbedding = errors.New("chromem: vectors must be supplied by the caller")

// Config configures the chromem store. An empty Path keeps everything in memory.
type Config struct {
	Path       string
	Collection string
	Compress   bool
}

// Store is a VectorIndex backed by one chromem-go collection.
type Store struct {
	mu         sync.RWMutex
	db         *chromem.DB
	name       string
	collection *chromem.Collection
	dimension  int
}

// New opens (or creates) the database. An existing collection is reused for
// searching until Recreate replaces it.
func New(cfg Config) (*Store, error) {
	if err := vectorstore.ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}
	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db %s: %w", cfg.Path, err)
		}
	}
	return &Store{
		db:         db,
		name:       cfg.Collection,
		collection: db.GetCollection(cfg.Collection, noEmbedding),
	}, nil
}

// noEmbedding is installed as the collection's embedding func. Every document
// carries its own vector, so it is never expected to run.
func noEmbedding(context.Context, string) ([]float32, error) { return nil, errNoEmbedding }

func (s *Store) Recreate(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return domain.ErrDimensionMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("dropping collection %s: %w", s.name, err)
	}
	meta := map[string]string{
		metaVectorSize: strconv.Itoa(dimension),
		metaDistance:   "cosine",
	}
	c, err := s.db.CreateCollection(s.name, meta, noEmbedding)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.name, err)
	}
	s.collection = c
	s.dimension = dimension
	return nil
}

func (s *Store) Upsert(ctx context.Context, points []domain.VectorPoint) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return vectorstore.ErrNotDeclared
	}
	if err := vectorstore.CheckPoints(points, s.dimension); err != nil {
		return err
	}
	for _, p := range points {
		doc := chromem.Document{
			ID:        strconv.FormatInt(p.ID, 10),
			Embedding: append([]float32(nil), p.Vector...),
			Metadata: map[string]string{
				metaTitle:      p.Payload.Title,
				metaURL:        p.Payload.URL,
				metaDocumentID: strconv.FormatInt(p.Payload.DocumentID, 10),
				metaSegmentID:  strconv.Itoa(p.Payload.SegmentID),
			},
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("adding point %d: %w", p.ID, err)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]domain.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := vectorstore.CheckQuery(vector, k, s.dimension); err != nil {
		return nil, err
	}
	if s.collection == nil {
		return nil, nil
	}
	n := s.collection.Count()
	if n == 0 {
		return nil, nil
	}
	// chromem's concurrent top-k leaves ties unordered, so rank every point here.
	res, err := s.collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		// A reopened collection has no declared dimension; chromem reports the mismatch itself.
		if strings.Contains(err.Error(), "same length") {
			return nil, fmt.Errorf("%w: %v", domain.ErrDimensionMismatch, err)
		}
		return nil, fmt.Errorf("querying collection %s: %w", s.name, err)
	}
	hits := make([]domain.Hit, 0, len(res))
	for _, r := range res {
		hit, err := toHit(r)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	rank(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// rank orders hits by descending score, then ascending key.
func rank(hits []domain.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

func toHit(r chromem.Result) (domain.Hit, error) {
	id, err := strconv.ParseInt(r.ID, 10, 64)
	if err != nil {
		return domain.Hit{}, fmt.Errorf("chromem: non-numeric point id %q", r.ID)
	}
	docID, err := strconv.ParseInt(r.Metadata[metaDocumentID], 10, 64)
	if err != nil {
		return domain.Hit{}, fmt.Errorf("chromem: point %d: bad document_id: %w", id, err)
	}
	segID, err := strconv.Atoi(r.Metadata[metaSegmentID])
	if err != nil {
		return domain.Hit{}, fmt.Errorf("chromem: point %d: bad segment_id: %w", id, err)
	}
	// chromem normalises a zero vector to NaN; such a pair has no similarity.
	score := r.Similarity
	if math.IsNaN(float64(score)) {
		score = 0
	}
	return domain.Hit{
		ID:    id,
		Score: score,
		Payload: domain.Payload{
			Title:      r.Metadata[metaTitle],
			URL:        r.Metadata[metaURL],
			DocumentID: docID,
			SegmentID:  segID,
		},
	}, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return 0, nil
	}
	return s.collection.Count(), nil
}

// Close is a no-op; persistent databases write through on every change.
func (s *Store) Close() error { return nil }
