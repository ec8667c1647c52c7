package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"semsearch/internal/chunker"
	"semsearch/internal/domain"
	"semsearch/internal/embedding/tfidf"
	"semsearch/internal/service"
	tmemory "semsearch/internal/textstore/memory"
	"semsearch/internal/vectorstore/chromem"
	vmemory "semsearch/internal/vectorstore/memory"
)

type searchCall struct {
	query  string
	k      int
	fields []string
}

type fakeSearcher struct {
	calls   []searchCall
	results []domain.Result
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query string, k int, fields []string) ([]domain.Result, error) {
	f.calls = append(f.calls, searchCall{query: query, k: k, fields: fields})
	return f.results, f.err
}

func newTestServer(t *testing.T, s Searcher) *Server {
	t.Helper()
	srv, err := NewServer(s, zap.NewNop(), Config{DefaultK: 5, DefaultFields: []string{domain.FieldTitle}})
	require.NoError(t, err)
	return srv
}

func post(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer_RequiresSearcher(t *testing.T) {
	_, err := NewServer(nil, zap.NewNop(), Config{})
	assert.Error(t, err)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleSearch_Defaults(t *testing.T) {
	fake := &fakeSearcher{results: []domain.Result{{Score: 0.9, Fields: domain.Record{"title": "Gustav Vasa"}}}}
	srv := newTestServer(t, fake)

	rec := post(t, srv, `{"query":"kung"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, searchCall{query: "kung", k: 5, fields: []string{domain.FieldTitle}}, fake.calls[0])

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Gustav Vasa", resp.Results[0].Fields["title"])
}

func TestHandleSearch_ExplicitParameters(t *testing.T) {
	fake := &fakeSearcher{results: []domain.Result{}}
	srv := newTestServer(t, fake)

	rec := post(t, srv, `{"query":"kung","k":2,"output_keys":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, fake.calls[0].k)
	assert.NotNil(t, fake.calls[0].fields)
	assert.Empty(t, fake.calls[0].fields)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestHandleSearch_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "empty query", err: domain.ErrEmptyQuery, want: http.StatusBadRequest},
		{name: "bad limit", err: domain.ErrInvalidLimit, want: http.StatusBadRequest},
		{name: "unknown field", err: domain.ErrUnknownField, want: http.StatusBadRequest},
		{name: "embedder mismatch", err: domain.ErrEmbeddingMismatch, want: http.StatusConflict},
		{name: "unresolved hit", err: domain.ErrUnresolvedHit, want: http.StatusInternalServerError},
		{name: "backend", err: errors.New("connection refused"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeSearcher{err: tt.err})
			rec := post(t, srv, `{"query":"x"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleSearch_MalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})
	rec := post(t, srv, `{"query":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	texts := tmemory.NewStore()
	index := vmemory.NewStorage()
	emb := tfidf.NewEmbedder()
	ing := service.NewIngester(chunker.NewSentenceChunker(chunker.NewRegexSplitter(), 20, 1), emb, texts, index)

	_, err := ing.Ingest(ctx, []domain.Document{
		{ID: 0, Title: "Gustav Vasa", URL: "https://sv.wikipedia.org/wiki/Gustav_Vasa",
			Content: "Gustav Vasa grundade den svenska nationalstaten. Han kröntes i Uppsala."},
		{ID: 1, Title: "Kristina", URL: "https://sv.wikipedia.org/wiki/Kristina_(regent)",
			Content: "Drottning Kristina abdikerade och flyttade till Rom."},
	})
	require.NoError(t, err)

	srv := newTestServer(t, service.NewResolver(emb, texts, index, nil))
	rec := post(t, srv, `{"query":"drottning i Rom","k":1,"output_keys":["title","url"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Kristina", resp.Results[0].Fields["title"])
	assert.True(t, strings.HasPrefix(resp.Results[0].Fields["url"].(string), "https://sv.wikipedia.org"))
	assert.NotContains(t, resp.Results[0].Fields, "content")
}

func TestSearchUnknownTermsOnChromem(t *testing.T) {
	ctx := context.Background()
	texts := tmemory.NewStore()
	index, err := chromem.New(chromem.Config{Collection: "segments"})
	require.NoError(t, err)
	emb := tfidf.NewEmbedder()
	ing := service.NewIngester(chunker.NewSentenceChunker(chunker.NewRegexSplitter(), 20, 1), emb, texts, index)

	_, err = ing.Ingest(ctx, []domain.Document{
		{ID: 1, Title: "Kristina", URL: "https://sv.wikipedia.org/wiki/Kristina_(regent)",
			Content: "Drottning Kristina abdikerade och flyttade till Rom."},
		{ID: 2, Title: "Tomt", URL: "https://example.org/tomt", Content: "Det är så."},
	})
	require.NoError(t, err)

	srv := newTestServer(t, service.NewResolver(emb, texts, index, nil))
	rec := post(t, srv, `{"query":"xylofon zeppelinare","k":2,"output_keys":["title"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		assert.Zero(t, r.Score)
	}
	assert.Equal(t, "Kristina", resp.Results[0].Fields["title"])

	rec = post(t, srv, `{"query":"drottning Rom","k":2,"output_keys":["title"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Kristina", resp.Results[0].Fields["title"])
	assert.Zero(t, resp.Results[1].Score)
}
