package domain

import "context"

// Document is one source text as supplied by the acquisition step. Read-only to the pipeline.
type Document struct {
	ID      int64  `json:"document_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Sentence is a boundary-detected sentence with its token count.
type Sentence struct {
	Text       string
	TokenCount int
}

// Segment is a contiguous run of sentences from one document, the unit of
// embedding and retrieval. SurrogateKey is shared with the segment's vector point.
type Segment struct {
	SurrogateKey int64
	DocumentID   int64
	SegmentID    int
	Title        string
	URL          string
	Content      string
}

// Payload is the metadata stored next to every vector point.
type Payload struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	DocumentID int64  `json:"document_id"`
	SegmentID  int    `json:"segment_id"`
}

// PayloadOf derives the vector payload for a stored segment.
func PayloadOf(s Segment) Payload {
	return Payload{Title: s.Title, URL: s.URL, DocumentID: s.DocumentID, SegmentID: s.SegmentID}
}

// VectorPoint is written 1:1 with a Segment; ID equals the segment's surrogate key.
type VectorPoint struct {
	ID      int64
	Vector  []float32
	Payload Payload
}

// Hit is one similarity search match, ordered by descending score.
type Hit struct {
	ID      int64
	Score   float32
	Payload Payload
}

// IndexInfo describes the embedding space the vector index was built with.
type IndexInfo struct {
	Model      string
	Dimension  int
	Collection string
}

// SentenceSplitter detects sentence boundaries and counts tokens per sentence.
type SentenceSplitter interface {
	Split(text string) ([]Sentence, error)
}

// Embedder converts free text into a fixed-length vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Preparer is implemented by embedders that must see the corpus before
// their dimension is known (e.g. TF-IDF vocabularies).
type Preparer interface {
	Prepare(ctx context.Context, corpus []string) error
}

// TextStore persists segment rows keyed by surrogate key.
type TextStore interface {
	// Insert fails with ErrDuplicateSegment when the surrogate key or the
	// (document_id, segment_id) pair already exists.
	Insert(ctx context.Context, seg Segment) error
	Get(ctx context.Context, key int64) (Segment, error)
	// GetByKeys returns the rows found, keyed by surrogate key. Missing keys are absent.
	GetByKeys(ctx context.Context, keys []int64) (map[int64]Segment, error)
	MaxKey(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
	SaveIndexInfo(ctx context.Context, info IndexInfo) error
	// IndexInfo returns ErrNotFound when no ingest run has been recorded.
	IndexInfo(ctx context.Context) (IndexInfo, error)
	Clear(ctx context.Context) error
	Close() error
}

// VectorIndex stores vectors with payload and answers cosine-similarity queries.
type VectorIndex interface {
	// Recreate drops any collection of the configured name and declares a new
	// one with the given dimension and cosine distance.
	Recreate(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []VectorPoint) error
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
