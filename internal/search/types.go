// Package search provides hybrid retrieval over the snippet corpus: BM25 and
// dense-vector signals fused under min-max normalization, with a Jaccard
// fallback and a two-stage answerability gate.
package search

import (
	"context"
)

// RefusalMessage is the canonical user-visible text when the answerability
// gate refuses.
const RefusalMessage = "Insufficient evidence. Please provide more context or initialize data first."

// Candidate-pool floor: the BM25 stage keeps at least min(N, candidateFloor)
// candidates regardless of k.
const candidateFloor = 50

// Normalization guards.
const (
	minMaxEpsilon  = 1e-9
	tieEpsilon     = 1e-6
	constantMidval = 0.5
)

// Options configures one retrieval call.
type Options struct {
	// K is the number of snippets to select.
	K int

	// BM25TopMult is the candidate fanout multiplier over K.
	BM25TopMult int

	// WeightBM25 is the fusion weight for the normalized BM25 signal.
	WeightBM25 float64

	// WeightEmbed is the fusion weight for the normalized similarity signal.
	WeightEmbed float64

	// AnswerThreshold is the fused-score gate.
	AnswerThreshold float64
}

// DefaultOptions returns the default retrieval parameters.
func DefaultOptions() Options {
	return Options{
		K:               5,
		BM25TopMult:     5,
		WeightBM25:      0.5,
		WeightEmbed:     0.5,
		AnswerThreshold: 0.15,
	}
}

// Result is the outcome of one retrieval call. When the gate refuses, IDs
// and Texts are empty but BestScore is still reported.
type Result struct {
	// IDs are the selected snippet ids, ordered by fused score descending.
	IDs []int

	// Texts are the selected snippet texts, aligned with IDs.
	Texts []string

	// BestScore is the best evidence score in [0, 1].
	BestScore float64

	// Refused reports that the fused-score gate rejected the query.
	Refused bool
}

// Query carries the per-request derived state shared by signal providers.
type Query struct {
	// Raw is the query string as received.
	Raw string

	// Tokens is the tokenized form of the query.
	Tokens []string

	// Embedding is the dense query embedding, nil when no encoder is
	// available.
	Embedding []float32
}

// Signal scores a candidate set against a query. Expressing each ranking
// signal behind this interface keeps the fusion ranker independent of where
// scores come from.
type Signal interface {
	// Name identifies the signal in logs.
	Name() string

	// Scores returns one score per candidate id, aligned with candidates.
	Scores(ctx context.Context, q *Query, candidates []int) ([]float64, error)
}
