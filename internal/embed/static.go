package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
)

// Feature weights for the static vector construction.
const (
	staticTokenWeight = 0.7
	staticNgramWeight = 0.3
	staticNgramSize   = 3
)

// staticTokenRegex matches alphanumeric runs.
var staticTokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// StaticEmbedder generates embeddings with a hashing trick over tokens and
// character trigrams. It needs no network or model download and is fully
// deterministic, at reduced semantic quality. Used as the offline fallback
// encoder.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates the embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	vector := make([]float32, StaticDimensions)

	lower := strings.ToLower(trimmed)
	for _, tok := range staticTokenRegex.FindAllString(lower, -1) {
		vector[hashToIndex(tok)] += staticTokenWeight
	}

	compact := strings.Join(staticTokenRegex.FindAllString(lower, -1), " ")
	runes := []rune(compact)
	for i := 0; i+staticNgramSize <= len(runes); i++ {
		vector[hashToIndex(string(runes[i:i+staticNgramSize]))] += staticNgramWeight
	}

	return normalizeVector(vector), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// ModelName returns the encoder identity.
func (e *StaticEmbedder) ModelName() string {
	return "static-hash-v1"
}

// Available always reports true: the static encoder has no dependencies.
func (e *StaticEmbedder) Available(ctx context.Context) bool {
	return true
}

// Close marks the embedder as closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// hashToIndex maps a feature string to a vector index.
func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(StaticDimensions))
}
