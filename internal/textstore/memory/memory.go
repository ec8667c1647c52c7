// Package memory is a TextStore kept in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"semsearch/internal/domain"
)

type docSeg struct {
	document int64
	segment  int
}

// Store enforces the same uniqueness rules as the SQLite schema.
type Store struct {
	mu     sync.RWMutex
	rows   map[int64]domain.Segment
	byPair map[docSeg]int64
	info   *domain.IndexInfo
}

func NewStore() *Store {
	return &Store{rows: make(map[int64]domain.Segment), byPair: make(map[docSeg]int64)}
}

func (s *Store) Insert(_ context.Context, seg domain.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair := docSeg{seg.DocumentID, seg.SegmentID}
	_, keyTaken := s.rows[seg.SurrogateKey]
	_, pairTaken := s.byPair[pair]
	if keyTaken || pairTaken {
		return fmt.Errorf("%w: key %d (document %d, segment %d)",
			domain.ErrDuplicateSegment, seg.SurrogateKey, seg.DocumentID, seg.SegmentID)
	}
	s.rows[seg.SurrogateKey] = seg
	s.byPair[pair] = seg.SurrogateKey
	return nil
}

func (s *Store) Get(_ context.Context, key int64) (domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.rows[key]
	if !ok {
		return domain.Segment{}, fmt.Errorf("segment %d: %w", key, domain.ErrNotFound)
	}
	return seg, nil
}

func (s *Store) GetByKeys(_ context.Context, keys []int64) (map[int64]domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]domain.Segment, len(keys))
	for _, k := range keys {
		if seg, ok := s.rows[k]; ok {
			out[k] = seg
		}
	}
	return out, nil
}

func (s *Store) MaxKey(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var maxKey int64
	for k := range s.rows {
		maxKey = max(maxKey, k)
	}
	return maxKey, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}

func (s *Store) SaveIndexInfo(_ context.Context, info domain.IndexInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = &info
	return nil
}

func (s *Store) IndexInfo(_ context.Context) (domain.IndexInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil {
		return domain.IndexInfo{}, fmt.Errorf("index info: %w", domain.ErrNotFound)
	}
	return *s.info, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[int64]domain.Segment)
	s.byPair = make(map[docSeg]int64)
	s.info = nil
	return nil
}

func (s *Store) Close() error { return nil }
