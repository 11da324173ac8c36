package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"advisory-rag/internal/config"
	"advisory-rag/internal/models"
)

// Client wraps an OpenAI-compatible embedding endpoint and pins the vector
// dimension the index expects.
type Client struct {
	embedder  *embeddings.EmbedderImpl
	model     string
	dimension int
}

// New creates the embedding client. The API key is read from the
// environment variable named in the config; a "Bearer " prefix is stripped
// so both raw keys and header values work.
func New(cfg config.EmbeddingConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey(), "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Client{embedder: embedder, model: cfg.Model, dimension: cfg.Dimension}, nil
}

// Embed converts text into its embedding vector. A vector of the wrong
// dimension is rejected here so a misconfigured model fails before anything
// reaches the index.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &models.ProviderError{Provider: "embedding", Op: "embed", Err: err}
	}
	if c.dimension > 0 && len(vector) != c.dimension {
		return nil, &models.ProviderError{
			Provider: "embedding",
			Op:       "embed",
			Err:      fmt.Errorf("model %s returned %d dimensions, index expects %d", c.model, len(vector), c.dimension),
		}
	}
	return vector, nil
}
