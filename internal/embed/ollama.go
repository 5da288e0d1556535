package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultOllamaHost is the default Ollama API endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string

	// Model is the embedding model name.
	Model string

	// Dimensions is the expected embedding dimension (0 = auto-detect).
	Dimensions int

	// BatchSize is the number of texts per request.
	BatchSize int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// SkipHealthCheck skips connectivity and dimension probing (tests).
	SkipHealthCheck bool
}

// ollamaEmbedRequest is the /api/embed request body. Input is either a
// string or a list of strings.
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// ollamaEmbedResponse is the /api/embed response body.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	dims      int

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates a new Ollama embedder. When SkipHealthCheck is
// unset and no dimension is configured, it probes the endpoint once to detect
// the embedding dimension; with a configured dimension no request is made.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}

	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck && e.dims == 0 {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		dims, err := e.detectDimensions(probeCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, fmt.Errorf("detect embedding dimensions: %w", err)
		}
		e.dims = dims
	}

	return e, nil
}

// detectDimensions probes the endpoint with a test embedding.
func (e *OllamaEmbedder) detectDimensions(ctx context.Context) (int, error) {
	embs, err := e.doEmbed(ctx, []string{"dimension detection"})
	if err != nil {
		return 0, err
	}
	if len(embs) == 0 || len(embs[0]) == 0 {
		return 0, fmt.Errorf("empty embedding returned")
	}
	return len(embs[0]), nil
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}

	embs, err := e.doEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embs))
	}
	return embs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, batching requests to
// the configured batch size.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		embs, err := e.doEmbed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(embs) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(embs))
		}
		results = append(results, embs...)
	}

	return results, nil
}

// doEmbed executes one /api/embed request.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := e.config.Host + "/api/embed"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result.Embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the encoder identity.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Available checks if the Ollama endpoint responds.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Close releases HTTP connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
