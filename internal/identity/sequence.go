// Package identity hands out surrogate keys and per-document segment numbers.
package identity

import (
	"sync/atomic"

	"semsearch/internal/domain"
)

// Sequence is a monotonic key generator. Each ingest run owns its own
// Sequence; it is safe for concurrent use.
type Sequence struct {
	last atomic.Int64
}

// NewSequence returns a sequence whose first Next call yields start.
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.last.Store(start - 1)
	return s
}

// Next returns the next key.
func (s *Sequence) Next() int64 { return s.last.Add(1) }

// Reserve claims n consecutive keys and returns the first of them.
func (s *Sequence) Reserve(n int) int64 {
	if n <= 0 {
		return s.last.Load() + 1
	}
	return s.last.Add(int64(n)) - int64(n) + 1
}

// Last returns the most recently issued key, or start-1 if none was issued.
func (s *Sequence) Last() int64 { return s.last.Load() }

// Allocator turns a document's segment texts into identified segments.
type Allocator struct {
	seq *Sequence
}

func NewAllocator(seq *Sequence) *Allocator { return &Allocator{seq: seq} }

// Allocate assigns consecutive surrogate keys and SegmentID 0..n-1 in text order.
// Title and URL are copied from the document.
func (a *Allocator) Allocate(doc domain.Document, texts []string) []domain.Segment {
	if len(texts) == 0 {
		return nil
	}
	first := a.seq.Reserve(len(texts))
	segs := make([]domain.Segment, len(texts))
	for i, text := range texts {
		segs[i] = domain.Segment{
			SurrogateKey: first + int64(i),
			DocumentID:   doc.ID,
			SegmentID:    i,
			Title:        doc.Title,
			URL:          doc.URL,
			Content:      text,
		}
	}
	return segs
}
