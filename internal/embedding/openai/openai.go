package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"docrag/internal/embedding"
)

// Client is an OpenAI-compatible embeddings client implementing embedding.Embedder.
// Retries are left to embedding.Batcher, so the SDK's own retry loop is disabled.
type Client struct {
	api   sdk.Client
	model string
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(t),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Client{api: sdk.NewClient(opts...), model: cfg.Model}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.api.Embeddings.New(ctx, sdk.EmbeddingNewParams{
		Input: sdk.EmbeddingNewParamsInputUnion{OfString: sdk.String(text)},
		Model: sdk.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

// classify marks throttling, server-side and transport failures as
// transient; 4xx responses other than 429 are permanent.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return embedding.Transient(fmt.Errorf("openai embeddings failed: %w", err))
		}
		return fmt.Errorf("openai embeddings failed: %w", err)
	}
	return embedding.Transient(fmt.Errorf("openai embeddings request: %w", err))
}
