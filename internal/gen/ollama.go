package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaHost is the default Ollama API endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// DefaultTimeout bounds one generation request. Generation is the slowest
// operation in the system; the model's own max-tokens setting bounds the
// practical latency well below this.
const DefaultTimeout = 5 * time.Minute

// OllamaConfig configures the Ollama generator.
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string

	// Model is the generation model name.
	Model string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

// generateOptions carries the sampling parameters.
type generateOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
}

// generateResponse is the Ollama /api/generate response body.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaGenerator generates text through Ollama's HTTP API.
type OllamaGenerator struct {
	client *http.Client
	config OllamaConfig
}

// Verify interface implementation at compile time
var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates a new Ollama generator.
func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OllamaGenerator{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// Generate returns the model completion for the prompt, trimmed of
// surrounding whitespace.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	reqBody := generateRequest{
		Model:  g.config.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			NumPredict:  params.MaxTokens,
			Stop:        params.Stop,
			Temperature: params.Temperature,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := g.config.Host + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return strings.TrimSpace(result.Response), nil
}

// Available checks if the Ollama endpoint responds.
func (g *OllamaGenerator) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Close releases HTTP connections.
func (g *OllamaGenerator) Close() error {
	g.client.CloseIdleConnections()
	return nil
}
