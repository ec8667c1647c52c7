package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"semsearch/internal/domain"
	"semsearch/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. SEMSEARCH_SEARCH_N_RESULTS.
const EnvPrefix = "SEMSEARCH_"

// TextSourceConfig selects where segment rows are stored.
type TextSourceConfig struct {
	Type         string `koanf:"type" yaml:"type"`
	TextDataFile string `koanf:"text_data_file" yaml:"text_data_file"`
}

// OpenAIConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIConfig struct {
	BaseURL           string  `koanf:"base_url" yaml:"base_url"`
	APIKeyEnv         string  `koanf:"api_key_env" yaml:"api_key_env"`
	Model             string  `koanf:"model" yaml:"model"`
	Dimensions        int     `koanf:"dimensions" yaml:"dimensions,omitempty"`
	TimeoutSecs       int     `koanf:"timeout_secs" yaml:"timeout_secs"`
	MaxRetries        int     `koanf:"max_retries" yaml:"max_retries"`
	RequestsPerSecond float64 `koanf:"requests_per_second" yaml:"requests_per_second,omitempty"`
}

// EmbeddingConfig selects and configures the text embedder implementation.
type EmbeddingConfig struct {
	Type            string       `koanf:"type" yaml:"type"`
	ModelNameOrPath string       `koanf:"model_name_or_path" yaml:"model_name_or_path,omitempty"`
	CacheFolder     string       `koanf:"cache_folder" yaml:"cache_folder,omitempty"`
	OpenAI          OpenAIConfig `koanf:"openai" yaml:"openai"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host        string `koanf:"host" yaml:"host"`
	Port        int    `koanf:"port" yaml:"port"`
	APIKey      string `koanf:"api_key" yaml:"api_key,omitempty"`
	UseTLS      bool   `koanf:"use_tls" yaml:"use_tls"`
	TimeoutSecs int    `koanf:"timeout_secs" yaml:"timeout_secs"`
}

// VectorDBConfig selects and configures the vector index implementation.
type VectorDBConfig struct {
	Type           string       `koanf:"type" yaml:"type"`
	CollectionName string       `koanf:"collection_name" yaml:"collection_name"`
	Path           string       `koanf:"path" yaml:"path,omitempty"`
	Qdrant         QdrantConfig `koanf:"qdrant" yaml:"qdrant"`
}

// SegmentorConfig configures how documents are split into segments.
type SegmentorConfig struct {
	Splitter              string `koanf:"splitter" yaml:"splitter"`
	MaxSegmentSize        int    `koanf:"max_segment_size" yaml:"max_segment_size"`
	NOverlappingSentences int    `koanf:"n_overlapping_sentences" yaml:"n_overlapping_sentences"`
}

type SearchConfig struct {
	NResults   int      `koanf:"n_results" yaml:"n_results"`
	OutputKeys []string `koanf:"output_keys" yaml:"output_keys"`
}

type IngestConfig struct {
	Workers int `koanf:"workers" yaml:"workers"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	TextSource     TextSourceConfig `koanf:"text_source" yaml:"text_source"`
	EmbeddingModel EmbeddingConfig  `koanf:"embedding_model" yaml:"embedding_model"`
	VectorDB       VectorDBConfig   `koanf:"vector_db" yaml:"vector_db"`
	Segmentor      SegmentorConfig  `koanf:"segmentor" yaml:"segmentor"`
	Search         SearchConfig     `koanf:"search" yaml:"search"`
	Ingest         IngestConfig     `koanf:"ingest" yaml:"ingest"`
	Log            logging.Config   `koanf:"log" yaml:"log"`
	Server         ServerConfig     `koanf:"server" yaml:"server"`
}

// Load reads the YAML file at path and applies SEMSEARCH_ environment
// overrides on top of the defaults. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(data), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/semsearch/config.yaml.
// If neither exists, it writes defaults to ~/.config/semsearch/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err != nil {
		if err := Save(userPath, Default()); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := defaultConfig()
	applyConfigDefaults(cfg)
	return cfg
}

// Validate rejects values the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Segmentor.MaxSegmentSize <= 0 {
		errs = append(errs, fmt.Errorf("segmentor.max_segment_size must be positive, got %d", c.Segmentor.MaxSegmentSize))
	}
	if c.Segmentor.NOverlappingSentences < 0 {
		errs = append(errs, fmt.Errorf("segmentor.n_overlapping_sentences must not be negative, got %d", c.Segmentor.NOverlappingSentences))
	}
	if c.Search.NResults <= 0 {
		errs = append(errs, fmt.Errorf("search.n_results must be positive, got %d", c.Search.NResults))
	}
	if err := domain.ValidateFields(c.Search.OutputKeys); err != nil {
		errs = append(errs, fmt.Errorf("search.output_keys: %w", err))
	}
	if c.Ingest.Workers <= 0 {
		errs = append(errs, fmt.Errorf("ingest.workers must be positive, got %d", c.Ingest.Workers))
	}
	if strings.TrimSpace(c.VectorDB.CollectionName) == "" {
		errs = append(errs, errors.New("vector_db.collection_name is required"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// sections lists the top-level keys, longest first, so that an environment
// key is matched against "embedding_model" before a shorter prefix.
var sections = func() []string {
	s := []string{"text_source", "embedding_model", "vector_db", "segmentor", "search", "ingest", "log", "server"}
	sort.Slice(s, func(i, j int) bool { return len(s[i]) > len(s[j]) })
	return s
}()

var subsections = map[string][]string{
	"embedding_model": {"openai"},
	"vector_db":       {"qdrant"},
}

// envKey maps SEMSEARCH_VECTOR_DB_QDRANT_HOST to vector_db.qdrant.host.
// Unknown sections are dropped. Comma separated output keys become a list.
func envKey(key, value string) (string, interface{}) {
	name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	for _, section := range sections {
		rest, ok := strings.CutPrefix(name, section+"_")
		if !ok {
			continue
		}
		for _, sub := range subsections[section] {
			if field, ok := strings.CutPrefix(rest, sub+"_"); ok {
				return section + "." + sub + "." + field, value
			}
		}
		path := section + "." + rest
		if path == "search.output_keys" {
			return path, splitList(value)
		}
		return path, value
	}
	return "", nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "semsearch", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		TextSource:     TextSourceConfig{Type: "sqlite", TextDataFile: filepath.Join("data", "segments.db")},
		EmbeddingModel: EmbeddingConfig{Type: "tfidf"},
		VectorDB:       VectorDBConfig{Type: "chromem", CollectionName: "segments", Path: filepath.Join("data", "vectors")},
		Segmentor:      SegmentorConfig{Splitter: "uax29", MaxSegmentSize: 128, NOverlappingSentences: 1},
		Search:         SearchConfig{NResults: 5},
		Ingest:         IngestConfig{Workers: 4},
		Log:            logging.Config{Level: "info", Format: "console"},
		Server:         ServerConfig{Addr: ":8080"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if len(cfg.Search.OutputKeys) == 0 {
		cfg.Search.OutputKeys = []string{domain.FieldTitle, domain.FieldURL, domain.FieldContent}
	}
	if cfg.EmbeddingModel.Type == "openai" {
		o := &cfg.EmbeddingModel.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 2
		}
	}
	if cfg.VectorDB.Type == "qdrant" {
		q := &cfg.VectorDB.Qdrant
		if q.Host == "" {
			q.Host = "localhost"
		}
		if q.Port == 0 {
			q.Port = 6334
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 30
		}
	}
}
