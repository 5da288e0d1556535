package gen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerator_Generate(t *testing.T) {
	var got generateRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "  The answer is 42.\n", Done: true})
	}))
	defer ts.Close()

	g := NewOllamaGenerator(OllamaConfig{Host: ts.URL, Model: "test-model"})
	defer func() { _ = g.Close() }()

	out, err := g.Generate(context.Background(), "What is the answer?", Params{
		MaxTokens:   128,
		Stop:        []string{"\nQuestion:"},
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "The answer is 42.", out)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "What is the answer?", got.Prompt)
	assert.False(t, got.Stream)
	assert.Equal(t, 128, got.Options.NumPredict)
	assert.Equal(t, []string{"\nQuestion:"}, got.Options.Stop)
	assert.InDelta(t, 0.2, got.Options.Temperature, 1e-9)
}

func TestOllamaGenerator_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	g := NewOllamaGenerator(OllamaConfig{Host: ts.URL, Model: "test-model"})
	defer func() { _ = g.Close() }()

	_, err := g.Generate(context.Background(), "prompt", Params{})
	assert.Error(t, err)
}

func TestOllamaGenerator_Available(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	g := NewOllamaGenerator(OllamaConfig{Host: ts.URL, Model: "test-model"})
	defer func() { _ = g.Close() }()

	assert.True(t, g.Available(context.Background()))

	ts.Close()
	assert.False(t, g.Available(context.Background()))
}

func TestOllamaGenerator_Defaults(t *testing.T) {
	g := NewOllamaGenerator(OllamaConfig{Model: "m"})
	assert.Equal(t, DefaultOllamaHost, g.config.Host)
	assert.Equal(t, DefaultTimeout, g.config.Timeout)
}
