// Package gen provides the generative-model contract and its Ollama client.
package gen

import (
	"context"
)

// Params bound one generation call. Stop sequences and max tokens are
// configured per prompt mode (concise vs detailed).
type Params struct {
	// MaxTokens bounds the generated length (and worst-case latency).
	MaxTokens int

	// Stop terminates generation at the first matching sequence.
	Stop []string

	// Temperature controls sampling randomness.
	Temperature float64
}

// Generator produces text from a prompt. Implementations are NOT assumed
// reentrant: the caller serializes Generate calls.
type Generator interface {
	// Generate returns the model completion for the prompt.
	Generate(ctx context.Context, prompt string, params Params) (string, error)

	// Available checks if the generator is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}
