package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"semsearch/internal/embedding"
)

// Known output sizes of the OpenAI embedding models.
var modelDimensions = map[string]int{
	string(openai.EmbeddingModelTextEmbedding3Small): 1536,
	string(openai.EmbeddingModelTextEmbedding3Large): 3072,
	string(openai.EmbeddingModelTextEmbeddingAda002): 1536,
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Dimensions requests shortened vectors from models that support it, and
	// declares the size for models this package does not know.
	Dimensions        int
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	client    openai.Client
	model     string
	dimension int
	sendDims  bool // only sent for models with a known native size
	limiter   *rate.Limiter
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}

	dim, known := modelDimensions[cfg.Model]
	if cfg.Dimensions > 0 {
		dim = cfg.Dimensions
	}
	if dim == 0 {
		return nil, fmt.Errorf("unknown output size for model %q: set embedding_model.openai.dimensions", cfg.Model)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(key),
			option.WithBaseURL(cfg.BaseURL),
			option.WithRequestTimeout(cfg.Timeout),
			option.WithMaxRetries(cfg.MaxRetries),
		),
		model:     cfg.Model,
		dimension: dim,
		sendDims:  known && cfg.Dimensions > 0,
		limiter:   rate.NewLimiter(limit, 1),
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai/" + c.model }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(c.model),
	}
	if c.sendDims {
		params.Dimensions = openai.Int(int64(c.dimension))
	}
	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	vec := embedding.ToFloat32(resp.Data[0].Embedding)
	if err := embedding.CheckDimension(vec, c.dimension); err != nil {
		return nil, fmt.Errorf("openai model %s: %w", c.model, err)
	}
	return vec, nil
}
