package chunker

import (
	"fmt"
	"strings"

	"semsearch/internal/domain"
)

// Span is a half-open range [Start, End) of sentence indices forming one segment.
type Span struct {
	Start int
	End   int
}

// Len returns the number of sentences in the span.
func (s Span) Len() int { return s.End - s.Start }

// Spans packs sentences greedily into segments bounded by maxTokens.
//
// The sentence at the cursor closes the open segment when adding it would
// reach the budget and the segment already holds a sentence. The next segment
// restarts max(1, len(segment)-overlap) sentences after the closed segment's
// start, so consecutive segments share at most overlap sentences and the start
// always advances. A sentence at or above the budget is never split.
func Spans(sentences []domain.Sentence, maxTokens, overlap int) ([]Span, error) {
	if maxTokens <= 0 || overlap < 0 {
		return nil, fmt.Errorf("%w: max_segment_size=%d n_overlapping_sentences=%d",
			domain.ErrInvalidSegmentParams, maxTokens, overlap)
	}
	for i, s := range sentences {
		if s.TokenCount < 0 {
			return nil, fmt.Errorf("%w: sentence %d has %d tokens", domain.ErrInvalidSentence, i, s.TokenCount)
		}
	}

	var spans []Span
	start, cursor, running := 0, 0, 0
	for cursor < len(sentences) {
		n := sentences[cursor].TokenCount
		if cursor > start && running+n >= maxTokens {
			spans = append(spans, Span{Start: start, End: cursor})
			start += max(1, cursor-start-overlap)
			cursor = start
			running = 0
			continue
		}
		running += n
		cursor++
	}
	if cursor > start {
		spans = append(spans, Span{Start: start, End: cursor})
	}
	return spans, nil
}

// Segment returns the text of every span: its sentences joined by a single space.
func Segment(sentences []domain.Sentence, maxTokens, overlap int) ([]string, error) {
	spans, err := Spans(sentences, maxTokens, overlap)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(spans))
	for i, sp := range spans {
		texts[i] = joinSentences(sentences[sp.Start:sp.End])
	}
	return texts, nil
}

func joinSentences(sentences []domain.Sentence) string {
	var b strings.Builder
	for i, s := range sentences {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// SentenceChunker splits documents into sentences and packs them into segments.
type SentenceChunker struct {
	splitter  domain.SentenceSplitter
	maxTokens int
	overlap   int
}

func NewSentenceChunker(splitter domain.SentenceSplitter, maxTokens, overlap int) *SentenceChunker {
	return &SentenceChunker{splitter: splitter, maxTokens: maxTokens, overlap: overlap}
}

// Chunk returns the ordered segment texts of one document.
func (c *SentenceChunker) Chunk(document domain.Document) ([]string, error) {
	sentences, err := c.splitter.Split(document.Content)
	if err != nil {
		return nil, fmt.Errorf("splitting document %d: %w", document.ID, err)
	}
	texts, err := Segment(sentences, c.maxTokens, c.overlap)
	if err != nil {
		return nil, fmt.Errorf("segmenting document %d: %w", document.ID, err)
	}
	return texts, nil
}
