// Package openai implements the embedding.Provider interface against
// the OpenAI embeddings API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/inkwell-ai/recall/pkg/embedding"
	"github.com/inkwell-ai/recall/pkg/telemetry"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 30 * time.Second
)

// Known model dimensions; unknown models default to 1536.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds OpenAI client configuration.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// Model is the embedding model to use.
	Model string

	// BaseURL is the API base URL, for proxies and compatible servers.
	BaseURL string

	// Timeout bounds each API request.
	Timeout time.Duration

	// MaxRetries for transient failures.
	MaxRetries int
}

// Client calls the OpenAI embeddings endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	dimension  int
}

// NewClient creates an embeddings client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	dim, ok := modelDimensions[cfg.Model]
	if !ok {
		dim = 1536
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		dimension:  dim,
	}, nil
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Embed converts text into a vector embedding, retrying transient
// failures with quadratic backoff.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, embedding.ErrEmptyInput
	}

	ctx, span := telemetry.StartEmbedding(ctx, c.cfg.Model)
	defer span.End()

	vec, err := c.embed(ctx, text)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return vec, err
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: text, Model: c.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt*attempt) * 100 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vec, err := c.doRequest(ctx, body)
		if err == nil {
			return vec, nil
		}
		if errors.Is(err, embedding.ErrInvalidAPIKey) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return nil, embedding.ErrInvalidAPIKey
		case http.StatusTooManyRequests:
			return nil, embedding.ErrRateLimited
		}
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("API error: %s", errResp.Error.Message)
		}
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embResp.Data[0].Embedding, nil
}

// Dimension returns the embedding dimension for this model.
func (c *Client) Dimension() int {
	return c.dimension
}

// ModelName returns the model name.
func (c *Client) ModelName() string {
	return c.cfg.Model
}
