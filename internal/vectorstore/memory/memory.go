package memory

import (
	"context"
	"sort"
	"sync"

	"semsearch/internal/domain"
	"semsearch/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Points with equal scores are returned in insertion order.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	points    []domain.VectorPoint
	position  map[int64]int
}

func NewStorage() *Storage { return &Storage{position: make(map[int64]int)} }

// Recreate drops all points and declares the new dimension.
func (s *Storage) Recreate(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return domain.ErrDimensionMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.points = nil
	s.position = make(map[int64]int)
	return nil
}

// Upsert stores points, replacing any point with the same id in place.
func (s *Storage) Upsert(_ context.Context, points []domain.VectorPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := vectorstore.CheckPoints(points, s.dimension); err != nil {
		return err
	}
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		if i, ok := s.position[p.ID]; ok {
			s.points[i] = p
			continue
		}
		s.position[p.ID] = len(s.points)
		s.points = append(s.points, p)
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, k int) ([]domain.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := vectorstore.CheckQuery(vector, k, s.dimension); err != nil {
		return nil, err
	}
	hits := make([]domain.Hit, len(s.points))
	for i, p := range s.points {
		hits[i] = domain.Hit{ID: p.ID, Score: vectorstore.Cosine(p.Vector, vector), Payload: p.Payload}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points), nil
}

func (s *Storage) Close() error { return nil }
