package tfidf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"semsearch/internal/domain"
	"semsearch/internal/embedding"
)

// Embedder implements a simple TF-IDF vectorizer.
// It builds a vocabulary from the corpus and computes IDF values.
type Embedder struct {
	mu           sync.RWMutex
	vocabulary   map[string]int
	terms        []string
	idf          []float64
	fingerprint  uint32
	statePath    string
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Open returns an embedder that persists its vocabulary at path. A vocabulary
// saved by an earlier run is loaded, so queries share the ingest's embedding space.
func Open(path string) (*Embedder, error) {
	e := NewEmbedder()
	e.statePath = path
	if err := e.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return e, nil
}

// Name identifies the embedder together with its vocabulary, so vectors built
// from different corpora are never mixed.
func (e *Embedder) Name() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.terms) == 0 {
		return "tfidf"
	}
	return fmt.Sprintf("tfidf-%08x", e.fingerprint)
}

// Dimension returns the vocabulary size, or 0 before Prepare.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.terms)
}

// Prepare builds the vocabulary and IDF values from the provided corpus and
// persists them when the embedder was opened with a state path.
func (e *Embedder) Prepare(ctx context.Context, corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	// Build vocabulary and document frequencies
	df := make(map[string]int)
	for _, text := range corpus {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		// Smoothed IDF
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	e.mu.Lock()
	e.setState(terms, idf)
	e.mu.Unlock()

	if e.statePath != "" {
		return e.Save(e.statePath)
	}
	return nil
}

// Embed computes the L2-normalised TF-IDF embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.terms) == 0 {
		return nil, domain.ErrNotPrepared
	}
	vec := make([]float32, len(e.terms))
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		vec[idx] = float32(float64(count) / float64(total) * e.idf[idx])
	}
	return embedding.Normalize(vec), nil
}

type state struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

// Save writes the vocabulary and IDF weights as JSON.
func (e *Embedder) Save(path string) error {
	e.mu.RLock()
	data, err := json.Marshal(state{Terms: e.terms, IDF: e.idf})
	e.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load replaces the vocabulary with one written by Save.
func (e *Embedder) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decoding tf-idf state %s: %w", path, err)
	}
	if len(st.Terms) != len(st.IDF) {
		return fmt.Errorf("tf-idf state %s: %d terms but %d weights", path, len(st.Terms), len(st.IDF))
	}
	e.mu.Lock()
	e.setState(st.Terms, st.IDF)
	e.mu.Unlock()
	return nil
}

func (e *Embedder) setState(terms []string, idf []float64) {
	e.terms = terms
	e.idf = idf
	e.vocabulary = make(map[string]int, len(terms))
	h := fnv.New32a()
	for i, term := range terms {
		e.vocabulary[term] = i
		h.Write([]byte(term))
		h.Write([]byte{0})
	}
	e.fingerprint = h.Sum32()
}

func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		// Swedish
		"och", "att", "det", "som", "en", "ett", "på", "är", "av", "för", "med", "till", "den", "har", "de", "inte", "om", "var", "jag", "sig", "men", "ut", "så", "vid", "han", "hon", "eller", "från", "kan", "när", "även", "efter", "under", "också", "blev", "hade", "sin", "sitt", "sina", "dess",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
