package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 5, cfg.Search.NResults)
	assert.Equal(t, []string{domain.FieldTitle, domain.FieldURL, domain.FieldContent}, cfg.Search.OutputKeys)
	assert.Equal(t, "segments", cfg.VectorDB.CollectionName)
	assert.Equal(t, 1, cfg.Segmentor.NOverlappingSentences)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
text_source:
  type: memory
embedding_model:
  type: openai
  openai:
    model: text-embedding-3-large
vector_db:
  type: qdrant
  collection_name: wiki
segmentor:
  splitter: regex
  max_segment_size: 64
  n_overlapping_sentences: 0
search:
  n_results: 3
  output_keys: [url, segment_id]
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.TextSource.Type)
	assert.Equal(t, "text-embedding-3-large", cfg.EmbeddingModel.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.EmbeddingModel.OpenAI.APIKeyEnv)
	assert.Equal(t, "qdrant", cfg.VectorDB.Type)
	assert.Equal(t, "localhost", cfg.VectorDB.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorDB.Qdrant.Port)
	assert.Equal(t, "wiki", cfg.VectorDB.CollectionName)
	assert.Equal(t, SegmentorConfig{Splitter: "regex", MaxSegmentSize: 64, NOverlappingSentences: 0}, cfg.Segmentor)
	assert.Equal(t, 3, cfg.Search.NResults)
	assert.Equal(t, []string{"url", "segment_id"}, cfg.Search.OutputKeys)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Ingest.Workers, "untouched sections keep their defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
segmentor:
  max_segment_size: 64
vector_db:
  type: qdrant
`)
	t.Setenv("SEMSEARCH_SEGMENTOR_MAX_SEGMENT_SIZE", "32")
	t.Setenv("SEMSEARCH_SEGMENTOR_N_OVERLAPPING_SENTENCES", "2")
	t.Setenv("SEMSEARCH_VECTOR_DB_COLLECTION_NAME", "sv_wiki")
	t.Setenv("SEMSEARCH_VECTOR_DB_QDRANT_PORT", "7000")
	t.Setenv("SEMSEARCH_VECTOR_DB_QDRANT_USE_TLS", "true")
	t.Setenv("SEMSEARCH_SEARCH_OUTPUT_KEYS", "title, content")
	t.Setenv("SEMSEARCH_EMBEDDING_MODEL_TYPE", "tfidf")
	t.Setenv("SEMSEARCH_UNKNOWN_THING", "ignored")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Segmentor.MaxSegmentSize)
	assert.Equal(t, 2, cfg.Segmentor.NOverlappingSentences)
	assert.Equal(t, "sv_wiki", cfg.VectorDB.CollectionName)
	assert.Equal(t, 7000, cfg.VectorDB.Qdrant.Port)
	assert.True(t, cfg.VectorDB.Qdrant.UseTLS)
	assert.Equal(t, []string{"title", "content"}, cfg.Search.OutputKeys)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "zero budget", body: "segmentor:\n  max_segment_size: 0\n", want: "max_segment_size"},
		{name: "negative overlap", body: "segmentor:\n  n_overlapping_sentences: -1\n", want: "n_overlapping_sentences"},
		{name: "zero results", body: "search:\n  n_results: 0\n", want: "n_results"},
		{name: "unknown output key", body: "search:\n  output_keys: [title, vector]\n", want: "vector"},
		{name: "empty collection", body: "vector_db:\n  collection_name: \"\"\n", want: "collection_name"},
		{name: "bad log level", body: "log:\n  level: loud\n", want: "log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_UnknownOutputKeyWrapsSentinel(t *testing.T) {
	_, err := Load(writeConfig(t, "search:\n  output_keys: [embedding]\n"))
	assert.True(t, errors.Is(err, domain.ErrUnknownField))
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "segmentor: [unclosed\n"))
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Default()
	want.VectorDB.CollectionName = "saved"
	want.Search.OutputKeys = []string{domain.FieldContent}

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		env  string
		key  string
		want interface{}
	}{
		{env: "SEMSEARCH_TEXT_SOURCE_TEXT_DATA_FILE", key: "text_source.text_data_file", want: "x"},
		{env: "SEMSEARCH_EMBEDDING_MODEL_OPENAI_BASE_URL", key: "embedding_model.openai.base_url", want: "x"},
		{env: "SEMSEARCH_EMBEDDING_MODEL_CACHE_FOLDER", key: "embedding_model.cache_folder", want: "x"},
		{env: "SEMSEARCH_VECTOR_DB_PATH", key: "vector_db.path", want: "x"},
		{env: "SEMSEARCH_LOG_LEVEL", key: "log.level", want: "x"},
		{env: "SEMSEARCH_SEARCH_OUTPUT_KEYS", key: "search.output_keys", want: []string{"x"}},
		{env: "SEMSEARCH_NOPE", key: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			key, value := envKey(tt.env, "x")
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.want, value)
		})
	}
}
