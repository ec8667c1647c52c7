package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clipperhouse/uax29/v2/sentences"
	"github.com/clipperhouse/uax29/v2/words"

	"semsearch/internal/domain"
)

// UAX29Splitter detects sentences with the Unicode text segmentation rules (UAX #29).
type UAX29Splitter struct{}

func NewUAX29Splitter() *UAX29Splitter { return &UAX29Splitter{} }

// Split returns the non-blank sentences of text with their token counts.
func (s *UAX29Splitter) Split(text string) ([]domain.Sentence, error) {
	var out []domain.Sentence
	iter := sentences.FromString(text)
	for iter.Next() {
		if sent := normalizeSpace(iter.Value()); sent != "" {
			out = append(out, domain.Sentence{Text: sent, TokenCount: CountTokens(sent)})
		}
	}
	return out, nil
}

// RegexSplitter splits on runs of terminal punctuation.
type RegexSplitter struct {
	pattern *regexp.Regexp
}

func NewRegexSplitter() *RegexSplitter {
	return &RegexSplitter{pattern: regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)}
}

func (s *RegexSplitter) Split(text string) ([]domain.Sentence, error) {
	var out []domain.Sentence
	for _, raw := range s.pattern.FindAllString(text, -1) {
		if sent := normalizeSpace(raw); sent != "" {
			out = append(out, domain.Sentence{Text: sent, TokenCount: CountTokens(sent)})
		}
	}
	return out, nil
}

// NewSplitter returns the splitter registered under name.
func NewSplitter(name string) (domain.SentenceSplitter, error) {
	switch name {
	case "uax29", "":
		return NewUAX29Splitter(), nil
	case "regex":
		return NewRegexSplitter(), nil
	default:
		return nil, fmt.Errorf("unknown sentence splitter: %s", name)
	}
}

// CountTokens counts the non-space UAX #29 word tokens of text, so words and
// punctuation marks each count as one token.
func CountTokens(text string) int {
	n := 0
	iter := words.FromString(text)
	for iter.Next() {
		if strings.TrimSpace(iter.Value()) != "" {
			n++
		}
	}
	return n
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
