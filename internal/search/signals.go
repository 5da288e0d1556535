package search

import (
	"context"
	"fmt"

	"github.com/claracenn/finlite/internal/embed"
	"github.com/claracenn/finlite/internal/store"
)

// lexicalSignal slices precomputed full-corpus BM25 scores down to the
// candidate pool.
type lexicalSignal struct {
	scores []float64
}

func (s *lexicalSignal) Name() string { return "bm25" }

func (s *lexicalSignal) Scores(_ context.Context, _ *Query, candidates []int) ([]float64, error) {
	out := make([]float64, len(candidates))
	for i, id := range candidates {
		out[i] = s.scores[id]
	}
	return out, nil
}

// semanticSignal batch-encodes the candidate texts and scores them by cosine
// similarity against the query embedding.
type semanticSignal struct {
	embedder embed.Embedder
	text     func(id int) string
}

func (s *semanticSignal) Name() string { return "embedding" }

func (s *semanticSignal) Scores(ctx context.Context, q *Query, candidates []int) ([]float64, error) {
	texts := make([]string, len(candidates))
	for i, id := range candidates {
		texts[i] = s.text(id)
	}

	embs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("encode candidates: %w", err)
	}
	if len(embs) != len(candidates) {
		return nil, fmt.Errorf("expected %d candidate embeddings, got %d", len(candidates), len(embs))
	}

	out := make([]float64, len(candidates))
	for i, e := range embs {
		out[i] = embed.CosineSimilarity(q.Embedding, e)
	}
	return out, nil
}

// overlapSignal computes Jaccard token overlap between the query and each
// candidate's tokenized form. The empty union is treated as full overlap.
type overlapSignal struct {
	docTokens func(id int) []string
}

func (s *overlapSignal) Name() string { return "jaccard" }

func (s *overlapSignal) Scores(_ context.Context, q *Query, candidates []int) ([]float64, error) {
	qset := store.TokenSet(q.Tokens)

	out := make([]float64, len(candidates))
	for i, id := range candidates {
		dset := store.TokenSet(s.docTokens(id))

		inter := 0
		for t := range qset {
			if _, ok := dset[t]; ok {
				inter++
			}
		}
		union := len(qset) + len(dset) - inter
		if union == 0 {
			union = 1
		}
		out[i] = float64(inter) / float64(union)
	}
	return out, nil
}

// minMaxNormalize rescales scores to [0, 1] over the candidate pool. A
// constant vector (max-min below epsilon) maps to 0.5 everywhere so it
// neither dominates nor vanishes in the weighted sum.
func minMaxNormalize(xs []float64) []float64 {
	if len(xs) == 0 {
		return []float64{}
	}

	mn, mx := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < mn {
			mn = x
		}
		if x > mx {
			mx = x
		}
	}

	out := make([]float64, len(xs))
	if mx-mn < minMaxEpsilon {
		for i := range out {
			out[i] = constantMidval
		}
		return out
	}

	for i, x := range xs {
		out[i] = (x - mn) / (mx - mn)
	}
	return out
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mx := xs[0]
	for _, x := range xs[1:] {
		if x > mx {
			mx = x
		}
	}
	return mx
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mn := xs[0]
	for _, x := range xs[1:] {
		if x < mn {
			mn = x
		}
	}
	return mn
}
