package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/claracenn/finlite/internal/corpus"
	"github.com/claracenn/finlite/internal/embed"
	"github.com/claracenn/finlite/internal/store"
)

// Retriever fuses lexical and dense signals over a shared candidate pool.
// BM25 statistics and the corpus are fixed for the retriever's lifetime;
// Index and Embedder may each be nil, in which case retrieval degrades to
// the available signals (BM25 with Jaccard similarity at minimum).
type Retriever struct {
	Corpus   *corpus.Corpus
	BM25     *store.BM25
	Index    *store.FlatIndex
	Embedder embed.Embedder
	Opts     Options
}

// Retrieve selects up to Opts.K snippets for the query and applies the
// fused-score gate. On refusal the result carries empty selections and the
// best evidence score.
func (r *Retriever) Retrieve(ctx context.Context, query string) (Result, error) {
	n := r.Corpus.Len()
	if n == 0 {
		return Result{IDs: []int{}, Texts: []string{}, BestScore: 0, Refused: true}, nil
	}

	q := &Query{Raw: query, Tokens: store.Tokenize(query)}

	// Lexical stage: score the whole corpus, keep the top slice as the
	// primary candidate pool.
	bm25Scores := r.BM25.Score(query)
	topn := r.Opts.K * r.Opts.BM25TopMult
	if floor := min(n, candidateFloor); topn < floor {
		topn = floor
	}
	bm25Idx := topIndices(bm25Scores, topn)

	// Dense stage: encode the query once when an encoder is available, and
	// pull neighbors when the index is present too.
	var indexIdx []int
	if r.Embedder != nil {
		qEmb, err := r.Embedder.Embed(ctx, query)
		if err != nil {
			return Result{}, err
		}
		q.Embedding = qEmb

		if r.Index != nil {
			ids, err := r.Index.Search(qEmb, topn)
			if err != nil {
				// A dimension mismatch means the index predates the current
				// encoder; retrieval continues without index candidates, and
				// the BM25 candidates are still re-ranked by embedding
				// similarity.
				slog.Warn("vector_search_skipped", slog.String("error", err.Error()))
			} else {
				indexIdx = ids
			}
		}
	}

	candidates := uniqueUnion(bm25Idx, indexIdx)

	// Raw Jaccard is always computed: it is the similarity fallback, the
	// tie-breaker, and part of the best-evidence score.
	overlap := &overlapSignal{docTokens: r.BM25.DocTokens}
	jaccard, err := overlap.Scores(ctx, q, candidates)
	if err != nil {
		return Result{}, err
	}

	var sims []float64
	if q.Embedding != nil {
		semantic := &semanticSignal{embedder: r.Embedder, text: r.Corpus.Text}
		sims, err = semantic.Scores(ctx, q, candidates)
		if err != nil {
			return Result{}, err
		}
	} else {
		sims = append([]float64(nil), jaccard...)
	}

	lexical := &lexicalSignal{scores: bm25Scores}
	candBM25, err := lexical.Scores(ctx, q, candidates)
	if err != nil {
		return Result{}, err
	}

	combined := fuse(candBM25, sims, jaccard, r.Opts.WeightBM25, r.Opts.WeightEmbed)

	// Stable sort keeps first-seen candidate order among ties.
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return combined[order[a]] > combined[order[b]]
	})

	k := r.Opts.K
	if k > len(order) {
		k = len(order)
	}

	bestScore := maxOf(combined)
	if j := maxOf(jaccard); j > bestScore {
		bestScore = j
	}

	if bestScore < r.Opts.AnswerThreshold {
		return Result{IDs: []int{}, Texts: []string{}, BestScore: bestScore, Refused: true}, nil
	}

	ids := make([]int, k)
	texts := make([]string, k)
	for i := 0; i < k; i++ {
		ids[i] = candidates[order[i]]
		texts[i] = r.Corpus.Text(ids[i])
	}

	return Result{IDs: ids, Texts: texts, BestScore: bestScore}, nil
}

// fuse combines the normalized sub-vectors under the configured weights,
// falling back to normalized Jaccard when the fused scores are degenerate.
func fuse(bm25, sims, jaccard []float64, wBM25, wEmbed float64) []float64 {
	normBM25 := minMaxNormalize(bm25)
	normSims := minMaxNormalize(sims)

	combined := make([]float64, len(normBM25))
	for i := range combined {
		combined[i] = wBM25*normBM25[i] + wEmbed*normSims[i]
	}

	if len(combined) > 0 && maxOf(combined)-minOf(combined) < tieEpsilon {
		combined = minMaxNormalize(jaccard)
	}
	return combined
}

// topIndices returns the indices of the n highest scores, descending, with
// ties in ascending index order.
func topIndices(scores []float64, n int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if n > len(idx) {
		n = len(idx)
	}
	return idx[:n]
}

// uniqueUnion concatenates the id lists, keeping the first occurrence of
// each id in first-seen order.
func uniqueUnion(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, list := range [][]int{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
