package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/inkwell-ai/recall/pkg/embedding"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		APIKey:     "sk-test",
		BaseURL:    baseURL,
		MaxRetries: 2,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.ModelName() != "text-embedding-3-small" {
		t.Errorf("expected default model, got %s", c.ModelName())
	}
	if c.Dimension() != 1536 {
		t.Errorf("expected dimension 1536, got %d", c.Dimension())
	}
}

func TestNewClient_ModelDimensions(t *testing.T) {
	c, err := NewClient(Config{APIKey: "sk-test", Model: "text-embedding-3-large"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.Dimension() != 3072 {
		t.Errorf("expected dimension 3072, got %d", c.Dimension())
	}
}

func TestEmbed(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req struct {
			Input string `json:"input"`
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Input != "hello" {
			t.Errorf("expected input 'hello', got %q", req.Input)
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	})

	c := newTestClient(t, srv.URL)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid")
	if _, err := c.Embed(context.Background(), ""); !errors.Is(err, embedding.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestEmbed_InvalidKeyNoRetry(t *testing.T) {
	var calls atomic.Int64
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := newTestClient(t, srv.URL)
	_, err := c.Embed(context.Background(), "hello")
	if !errors.Is(err, embedding.ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("auth failures should not be retried, got %d calls", calls.Load())
	}
}

func TestEmbed_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{1}},
			},
		})
	})

	c := newTestClient(t, srv.URL)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed after retries: %v", err)
	}
	if len(vec) != 1 {
		t.Errorf("unexpected vector %v", vec)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestEmbed_RateLimited(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	c := newTestClient(t, srv.URL)
	_, err := c.Embed(context.Background(), "hello")
	if !errors.Is(err, embedding.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestEmbed_ContextCancellation(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Embed(ctx, "hello")
	if err == nil {
		t.Error("expected error with cancelled context")
	}
}

func TestEmbed_APIErrorMessage(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "input too long"},
		})
	})

	c := newTestClient(t, srv.URL)
	_, err := c.Embed(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "input too long") {
		t.Errorf("expected API error message to surface, got %v", err)
	}
}
