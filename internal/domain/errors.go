package domain

import "errors"

var (
	// ErrInvalidSentence is returned for malformed splitter output such as negative token counts.
	ErrInvalidSentence = errors.New("invalid sentence")

	// ErrInvalidSegmentParams is returned for a non-positive budget or a negative overlap.
	ErrInvalidSegmentParams = errors.New("invalid segmentation parameters")

	// ErrDuplicateSegment signals a uniqueness violation in the text store.
	ErrDuplicateSegment = errors.New("duplicate segment")

	// ErrDimensionMismatch is returned when a vector does not match the collection dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnresolvedHit means the vector index returned an id with no text-store row.
	ErrUnresolvedHit = errors.New("search hit has no stored segment")

	// ErrPayloadMismatch means a point's payload disagrees with its stored segment.
	ErrPayloadMismatch = errors.New("search hit payload does not match stored segment")

	// ErrEmbeddingMismatch means the query embedder differs from the one used at ingest.
	ErrEmbeddingMismatch = errors.New("embedder does not match indexed embedding space")

	ErrEmptyQuery   = errors.New("query is empty")
	ErrInvalidLimit = errors.New("result limit must be positive")
	ErrUnknownField = errors.New("unknown segment field")
	ErrNotFound     = errors.New("not found")
	ErrNotPrepared  = errors.New("embedder not prepared")
)
